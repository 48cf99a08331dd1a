package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/service"
)

type ConnectionsOptions struct {
	*RootOptions
	UserID string
}

func NewConnectionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConnectionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "connections",
		Short:         "List a user's provider connections",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), readOnly, func(rt *bootstrap.Runtime) error {
				return runConnections(cmd.Context(), opts, rt, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runConnections(ctx context.Context, opts *ConnectionsOptions, rt *bootstrap.Runtime, w io.Writer) error {
	conns, err := service.ListConnections(ctx, rt.Store, &internal.User{ID: opts.UserID})
	if err != nil {
		return err
	}
	return opts.emit(w, conns, func(w io.Writer) {
		if len(conns) == 0 {
			fmt.Fprintln(w, "no connections")
			return
		}
		for _, c := range conns {
			state := "active"
			if !c.IsActive {
				state = "disconnected"
			}
			last := "never"
			if !c.LastSyncAt.IsZero() {
				last = c.LastSyncAt.Format("2006-01-02 15:04:05Z07:00")
			}
			fmt.Fprintf(w, "%-8s %-12s last sync %s\n", c.Provider, state, last)
		}
	})
}
