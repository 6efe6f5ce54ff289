package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mpcompat/internal/compiler"
)

// GroupSummary describes one valid group.
type GroupSummary struct {
	Name    string `json:"name"`
	Phase   string `json:"phase"`
	Symbols int    `json:"symbols"`
	Methods int    `json:"methods"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Files  int            `json:"files"`
	Groups []GroupSummary `json:"groups,omitempty"`
	Errors []string       `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [groups-dir]",
		Short: "Validate integration group declarations",
		Long: `Compile and validate the CUE group declarations of a directory.

Checks every group's symbols, sync methods, exclusions, and scopes without
loading them into a host. The directory defaults to groups_dir from the
configuration.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Config.GroupsDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := opts.Logger()

	if dir == "" {
		_ = formatter.Error(compiler.ErrCodeNotFound, "no groups directory given", nil)
		return NewExitError(ExitCommandError, "no groups directory given")
	}

	result, errs := compiler.LoadGroups(dir, compiler.LoadModeCollectAll)
	if result == nil {
		code, message := compiler.ErrCodeGeneric, errs[0].Error()
		var loadErr *compiler.LoadError
		if errors.As(errs[0], &loadErr) {
			code, message = loadErr.Code, loadErr.Message
		}
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	logger.Debug().Int("files", result.FileCount).Str("dir", dir).Msg("group declarations loaded")

	out := ValidationResult{Valid: len(errs) == 0, Files: result.FileCount}
	for _, g := range result.Groups {
		out.Groups = append(out.Groups, GroupSummary{
			Name:    g.Name,
			Phase:   string(g.Phase),
			Symbols: len(g.Symbols),
			Methods: len(g.Methods),
		})
		logger.Debug().Str("group", g.Name).Msg("group valid")
	}
	for _, err := range errs {
		out.Errors = append(out.Errors, err.Error())
	}

	if !out.Valid {
		if formatter.JSON() {
			code := compiler.ErrCodeGeneric
			var loadErr *compiler.LoadError
			if errors.As(errs[0], &loadErr) {
				code = loadErr.Code
			}
			_ = formatter.Error(code, errs[0].Error(), out)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ Validation failed")
			fmt.Fprintln(formatter.Writer)
			for _, msg := range out.Errors {
				fmt.Fprintf(formatter.Writer, "  %s\n", msg)
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d group(s) valid\n", len(out.Groups))
	for _, g := range out.Groups {
		fmt.Fprintf(formatter.Writer, "  %-12s %-9s %d symbol(s), %d sync method(s)\n", g.Name, g.Phase, g.Symbols, g.Methods)
	}
	return nil
}
