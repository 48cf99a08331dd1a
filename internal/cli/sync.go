package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
)

type SyncOptions struct {
	*RootOptions
	UserID   string
	Provider string
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one provider for one user",
		Long: `Fetch the user's activity from a provider and import entries not seen before.

Examples:
  timelinectl sync --user u1 --provider github
  timelinectl sync --user u1 --provider notion --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withRuntime(cmd.Context(), syncs, func(rt *bootstrap.Runtime) error {
				return runSync(cmd.Context(), opts, rt, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "provider name (required)")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}

func runSync(ctx context.Context, opts *SyncOptions, rt *bootstrap.Runtime, w io.Writer) error {
	created, err := rt.Orchestrator.RunSync(ctx, opts.UserID, opts.Provider)
	if err != nil {
		return err
	}
	return opts.emit(w, created, func(w io.Writer) {
		fmt.Fprintf(w, "created %d entries\n", len(created))
		for _, e := range created {
			fmt.Fprintf(w, "  %s  %s\n", e.EventDate.Format("2006-01-02"), e.Title)
		}
	})
}
