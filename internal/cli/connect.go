package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/service"
)

type ConnectOptions struct {
	*RootOptions
	UserID   string
	Provider string
	Token    string
	Settings string
}

func NewConnectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Store a provider credential for a user",
		Long: `Create or replace a user's connection to a provider. A disconnected
connection is reactivated.

Examples:
  timelinectl connect --user u1 --provider github --token ghp_xxx
  timelinectl connect --user u1 --provider notion --token secret_xxx --settings '{"database_ids":["abc"]}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), writes, func(rt *bootstrap.Runtime) error {
				return runConnect(cmd.Context(), opts, rt, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "provider name (required)")
	_ = cmd.MarkFlagRequired("provider")
	cmd.Flags().StringVar(&opts.Token, "token", "", "access token (required)")
	_ = cmd.MarkFlagRequired("token")
	cmd.Flags().StringVar(&opts.Settings, "settings", "", "provider settings as a JSON object")
	return cmd
}

func runConnect(ctx context.Context, opts *ConnectOptions, rt *bootstrap.Runtime, w io.Writer) error {
	provider, ok := service.ResolveProvider(rt.Orchestrator.Providers(), opts.Provider)
	if !ok {
		return fmt.Errorf("unknown provider %q: must be one of %v", opts.Provider, rt.Orchestrator.Providers())
	}
	req := &service.ConnectRequest{AccessToken: opts.Token}
	if opts.Settings != "" {
		req.Settings = json.RawMessage(opts.Settings)
	}
	if err := service.ValidateConnectRequest(req); err != nil {
		return err
	}
	conn, err := service.Connect(ctx, rt.Store, &internal.User{ID: opts.UserID}, provider, req)
	if err != nil {
		return err
	}
	return opts.emit(w, conn.Summary(), func(w io.Writer) {
		fmt.Fprintf(w, "connected %s for user %s\n", conn.Provider, conn.UserID)
	})
}
