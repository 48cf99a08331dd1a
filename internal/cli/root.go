package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/bootstrap"
	"github.com/penumakaaravindjoshi-hue/personal-timeline-app/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	Standalone bool
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the timelinectl command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "timelinectl",
		Short: "Operate the personal timeline backend",
		Long:  "Run provider syncs, manage stored connections and purge user data without going through the HTTP API.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.Standalone, "standalone", false, "allow writes to process-local state (no server is running against it)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewConnectCommand(opts))
	cmd.AddCommand(NewConnectionsCommand(opts))
	cmd.AddCommand(NewPurgeUserCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(cfg *config.Config) internal.Logger {
	if !o.Verbose {
		return internal.NopLogger()
	}
	l, err := internal.NewLogger(cfg.Env, "debug")
	if err != nil {
		return internal.NopLogger()
	}
	return l
}

// access describes what a command does to shared state.
type access int

const (
	readOnly access = iota
	writes
	syncs
)

// withRuntime opens the shared components for the duration of fn. Commands
// that write refuse process-local state unless --standalone is set.
func (o *RootOptions) withRuntime(ctx context.Context, mode access, fn func(rt *bootstrap.Runtime) error) error {
	cfg, err := config.LoadChecked()
	if err != nil {
		return err
	}
	if mode != readOnly && !o.Standalone {
		if err := bootstrap.CheckShared(cfg, mode == syncs); err != nil {
			return fmt.Errorf("%w; pass --standalone if no server is running against this store", err)
		}
	}
	rt, err := bootstrap.New(ctx, cfg, o.logger(cfg))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// emit writes v as JSON, or calls text for the text format.
func (o *RootOptions) emit(w io.Writer, v any, text func(w io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
