package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcompat/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	DBPath string
	Peer   string
}

// JournalEntry is one journaled operation as printed.
type JournalEntry struct {
	Seq      int64  `json:"seq"`
	Origin   string `json:"origin"`
	Method   string `json:"method"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Checksum string `json:"checksum"`
}

// PeerJournal summarizes one peer's journal.
type PeerJournal struct {
	Peer     string `json:"peer"`
	LastSeq  int64  `json:"last_seq"`
	Checksum string `json:"checksum"`
	// DivergedAt is the first seq whose checksum differs from the reference
	// peer. Zero means none.
	DivergedAt int64          `json:"diverged_at,omitempty"`
	Operations []JournalEntry `json:"operations,omitempty"`
}

// JournalReport is the output of the journal command.
type JournalReport struct {
	Reference string        `json:"reference,omitempty"`
	Converged bool          `json:"converged"`
	Peers     []PeerJournal `json:"peers"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect an operation journal",
		Long: `Inspect the operation journal written by simulate --db.

Prints each peer's final checksum and compares every peer against the first
one, reporting the first sequence number at which they diverged. With
--peer, also lists that peer's operations.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "journal database path (defaults to journal from the configuration)")
	cmd.Flags().StringVar(&opts.Peer, "peer", "", "list the operations of this peer")

	return cmd
}

func runJournal(rootOpts *RootOptions, opts *JournalOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	ctx := cmd.Context()

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = rootOpts.Config.Journal
	}
	if dbPath == "" {
		_ = formatter.Error("E201", "no journal database given", nil)
		return NewExitError(ExitCommandError, "no journal database given")
	}
	// Open would create a fresh database.
	if _, err := os.Stat(dbPath); err != nil {
		_ = formatter.Error("E202", fmt.Sprintf("journal not found: %s", dbPath), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error("E203", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	peers, err := st.Peers(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if opts.Peer != "" && !containsPeer(peers, opts.Peer) {
		_ = formatter.Error("E204", fmt.Sprintf("no records for peer %s", opts.Peer), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("no records for peer %s", opts.Peer))
	}

	report := JournalReport{Converged: true, Peers: []PeerJournal{}}
	for i, peer := range peers {
		checksum, seq, err := st.LastChecksum(ctx, peer)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		pj := PeerJournal{Peer: peer, LastSeq: seq, Checksum: checksum}
		if i == 0 {
			report.Reference = peer
		} else {
			at, err := st.FirstDivergence(ctx, peers[0], peer)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to compare journals", err)
			}
			if at > 0 {
				pj.DivergedAt = at
				report.Converged = false
			}
		}
		if peer == opts.Peer {
			records, err := st.ReadOperations(ctx, peer)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read journal", err)
			}
			for _, r := range records {
				pj.Operations = append(pj.Operations, JournalEntry{
					Seq:      r.Seq,
					Origin:   r.Origin,
					Method:   r.Method,
					Status:   string(r.Status),
					Error:    r.Error,
					Checksum: r.Checksum,
				})
			}
		}
		report.Peers = append(report.Peers, pj)
	}

	if formatter.JSON() {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printJournal(formatter, report)
	}

	if !report.Converged {
		return NewExitError(ExitFailure, "journals diverged")
	}
	return nil
}

func printJournal(f *OutputFormatter, r JournalReport) {
	if len(r.Peers) == 0 {
		fmt.Fprintln(f.Writer, "journal is empty")
		return
	}
	for _, p := range r.Peers {
		line := fmt.Sprintf("%s seq=%d checksum=%s", p.Peer, p.LastSeq, shortChecksum(p.Checksum))
		if p.DivergedAt > 0 {
			line += fmt.Sprintf(" diverged at seq %d", p.DivergedAt)
		}
		fmt.Fprintln(f.Writer, line)
		for _, op := range p.Operations {
			fmt.Fprintf(f.Writer, "  %4d %-8s %s (%s)", op.Seq, op.Status, op.Method, op.Origin)
			if op.Error != "" {
				fmt.Fprintf(f.Writer, ": %s", op.Error)
			}
			fmt.Fprintln(f.Writer)
		}
	}
	if r.Converged {
		fmt.Fprintln(f.Writer, "✓ all peers agree")
	} else {
		fmt.Fprintf(f.Writer, "✗ peers diverged from %s\n", r.Reference)
	}
}

func shortChecksum(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

func containsPeer(peers []string, peer string) bool {
	for _, p := range peers {
		if p == peer {
			return true
		}
	}
	return false
}
