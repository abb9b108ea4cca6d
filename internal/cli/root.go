package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/nodegraph/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// EnvFile overrides the default ".env" settings file.
	EnvFile string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nodegraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nodegraph",
		Short: "Order, layer, compile and run node graphs",
		Long: `nodegraph schedules node graphs declared in CUE or YAML.

It computes a deterministic execution order, groups nodes into layers that
can run concurrently, compiles marked boundaries into single units, and runs
the resulting plan.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "settings file (default .env)")

	cmd.AddCommand(NewOrderCommand(opts))
	cmd.AddCommand(NewLayersCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewManifestsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// settings loads runtime configuration once per invocation.
func (o *RootOptions) settings() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	var files []string
	if o.EnvFile != "" {
		files = []string{o.EnvFile}
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

// logger writes structured logs to w. --verbose forces debug level.
func (o *RootOptions) logger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
