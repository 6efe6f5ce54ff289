package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcompat/internal/harness"
	"github.com/roach88/mpcompat/internal/store"
	"github.com/roach88/mpcompat/internal/transport"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	DBPath string
	Peers  int
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a multi-peer scenario",
		Long: `Run a scenario against simulated peers that share one ordered operation log.

Every peer loads the integration groups, replays the scenario's player
actions, and applies the resulting operations in order. The run passes when
every assertion holds.

With --db, every applied operation of every peer is journaled so the
journal command can locate the first divergence. Peers are then named by
fresh UUIDv7 ids so repeated runs do not collide.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal database path (defaults to journal from the configuration)")
	cmd.Flags().IntVar(&opts.Peers, "peers", 0, "peer count for scenarios that do not set one")

	return cmd
}

func runSimulate(rootOpts *RootOptions, opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	cfg := rootOpts.Config
	logger := rootOpts.Logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error("E101", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := harness.Options{
		Peers:    cfg.Peers,
		Debug:    cfg.Debug,
		Disabled: cfg.Disabled,
		Logger:   logger,
	}
	if opts.Peers > 0 {
		runOpts.Peers = opts.Peers
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = cfg.Journal
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			_ = formatter.Error("E102", err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()
		runOpts.Journal = st
		runOpts.IDs = transport.UUIDv7Generator{}
		logger.Debug().Str("db", dbPath).Msg("journaling operations")
	}

	result, err := harness.Run(cmd.Context(), scenario, runOpts)
	if err != nil {
		_ = formatter.Error("E103", err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario failed to run", err)
	}

	if formatter.JSON() {
		if result.Pass {
			if err := formatter.Success(result); err != nil {
				return err
			}
		} else {
			_ = formatter.Error("E104", "assertions failed", result)
		}
	} else {
		printSimulation(formatter, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s: %d assertion(s) failed", result.Scenario, len(result.Errors)))
	}
	return nil
}

func printSimulation(f *OutputFormatter, r *harness.Result) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	state := "converged"
	if !r.Converged {
		state = "diverged"
	}
	fmt.Fprintf(f.Writer, "%s %s: %d operation(s), %s\n", mark, r.Scenario, r.Submitted, state)
	for _, p := range r.Peers {
		fmt.Fprintf(f.Writer, "  %s applied=%d failed=%d\n", p.ID, p.Applied, p.Failed)
		for _, name := range p.GroupNames() {
			fmt.Fprintf(f.Writer, "    %-12s %s\n", name, p.Groups[name])
		}
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(f.Writer, "\n%s\n", msg)
	}
}
