package cli

import (
	"fmt"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/roach88/mpcompat/internal/config"
	"github.com/roach88/mpcompat/internal/ir"
	"github.com/roach88/mpcompat/internal/logging"
)

// RootOptions holds global flags and what the root command builds from them.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config and log are set before any subcommand runs.
	Config config.Config
	log    *logging.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Logger returns the root logger, or a disabled one when the command runs
// without the root command.
func (o *RootOptions) Logger() zerolog.Logger {
	if o.log == nil {
		return zerolog.Nop()
	}
	return o.log.Logger
}

// NewRootCommand creates the root command of the mpcompat CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Config: config.Default()}

	cmd := &cobra.Command{
		Use:   "mpcompat",
		Short: "mpcompat - multiplayer compatibility for third-party mods",
		Long: `Keeps mod state identical across multiplayer peers by binding mod symbols,
hooking their methods, and replicating calls as ordered operations.

Validate group declarations, simulate multi-peer scenarios, and inspect
operation journals.`,
		Version:       ir.RuntimeVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg

			l, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to set up logging", err)
			}
			if opts.Verbose {
				l.Verbose()
			}
			opts.log = l
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.log != nil {
				return opts.log.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a TOML config file")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))

	return cmd
}
