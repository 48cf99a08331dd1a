package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
)

type PurgeUserOptions struct {
	*RootOptions
	UserID string
}

func NewPurgeUserCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeUserOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "purge-user",
		Short:         "Delete every connection and timeline entry of a user",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), writes, func(rt *bootstrap.Runtime) error {
				if err := rt.Store.PurgeUser(cmd.Context(), opts.UserID); err != nil {
					return err
				}
				return opts.emit(cmd.OutOrStdout(), map[string]string{"purged": opts.UserID}, func(w io.Writer) {
					fmt.Fprintf(w, "purged user %s\n", opts.UserID)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
