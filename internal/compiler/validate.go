package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/mpcompat/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// GroupSpec errors (E101-E109)
	ErrGroupNameEmpty  = "E101" // group name is required
	ErrGroupNoSymbols  = "E102" // at least one symbol required
	ErrInvalidPhase    = "E103" // phase must be immediate or late
	ErrInvalidKind     = "E104" // unknown symbol kind
	ErrDuplicateName   = "E105" // duplicate symbol or method
	ErrInvalidArity    = "E106" // arity on a kind that has none, or negative
	ErrEmptySymbolName = "E107" // blank symbol or fallback name

	// MethodSpec errors (E110-E119)
	ErrMethodSymbolMissing = "E110" // no method symbol backs the replicated method
	ErrInvalidScope        = "E111" // scope must be any or selected
	ErrInvalidExclude      = "E112" // exclude index negative, repeated or beyond arity
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled group against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch g := v.(type) {
	case *ir.GroupSpec:
		return validateGroupSpec(g)
	case ir.GroupSpec:
		return validateGroupSpec(&g)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateGroupSpec(spec *ir.GroupSpec) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "group name is required and must be non-empty",
			Code:    ErrGroupNameEmpty,
		})
	}

	switch spec.Phase {
	case ir.PhaseImmediate, ir.PhaseLate, "":
	default:
		errs = append(errs, ValidationError{
			Field:   "phase",
			Message: fmt.Sprintf("invalid phase %q, must be \"immediate\" or \"late\"", spec.Phase),
			Code:    ErrInvalidPhase,
		})
	}

	if len(spec.Symbols) == 0 {
		errs = append(errs, ValidationError{
			Field:   "symbols",
			Message: "at least one symbol is required",
			Code:    ErrGroupNoSymbols,
		})
	}

	symbols := make(map[string]ir.SymbolSpec, len(spec.Symbols))
	for i, sym := range spec.Symbols {
		field := fmt.Sprintf("symbols[%d]", i)

		if strings.TrimSpace(sym.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "symbol name is required",
				Code:    ErrEmptySymbolName,
			})
		}
		if _, dup := symbols[sym.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate symbol name: %q", sym.Name),
				Code:    ErrDuplicateName,
			})
		}
		symbols[sym.Name] = sym

		if !ir.ValidKinds[sym.Kind] {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid kind %q for symbol %q", sym.Kind, sym.Name),
				Code:    ErrInvalidKind,
			})
		}
		errs = append(errs, validateArity(sym, field)...)

		for j, alt := range sym.Alt {
			if strings.TrimSpace(alt) == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.alt[%d]", field, j),
					Message: fmt.Sprintf("blank fallback name for symbol %q", sym.Name),
					Code:    ErrEmptySymbolName,
				})
			}
		}
	}

	methods := make(map[string]bool, len(spec.Methods))
	for i, m := range spec.Methods {
		field := fmt.Sprintf("methods[%d]", i)
		id := m.ID()

		if methods[id] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate replicated method: %q", id),
				Code:    ErrDuplicateName,
			})
		}
		methods[id] = true

		sym, ok := symbols[id]
		if !ok || sym.Kind != ir.KindMethod {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("replicated method %q needs a method symbol of the same name", id),
				Code:    ErrMethodSymbolMissing,
			})
		}

		if !ir.ValidScopes[m.Scope] {
			errs = append(errs, ValidationError{
				Field:   field + ".scope",
				Message: fmt.Sprintf("invalid scope %q, must be \"any\" or \"selected\"", m.Scope),
				Code:    ErrInvalidScope,
			})
		}

		seen := make(map[int]bool, len(m.Exclude))
		for j, idx := range m.Exclude {
			exField := fmt.Sprintf("%s.exclude[%d]", field, j)
			switch {
			case idx < 0:
				errs = append(errs, ValidationError{
					Field:   exField,
					Message: fmt.Sprintf("negative argument index %d", idx),
					Code:    ErrInvalidExclude,
				})
			case seen[idx]:
				errs = append(errs, ValidationError{
					Field:   exField,
					Message: fmt.Sprintf("argument index %d excluded twice", idx),
					Code:    ErrInvalidExclude,
				})
			case ok && sym.Arity != ir.ArityUnchecked && idx >= sym.Arity:
				errs = append(errs, ValidationError{
					Field:   exField,
					Message: fmt.Sprintf("argument index %d beyond arity %d", idx, sym.Arity),
					Code:    ErrInvalidExclude,
				})
			}
			seen[idx] = true
		}
	}

	return errs
}

// validateArity rejects arity on kinds that have no parameter list.
func validateArity(sym ir.SymbolSpec, field string) []ValidationError {
	if sym.Arity == ir.ArityUnchecked {
		return nil
	}
	if sym.Arity < 0 {
		return []ValidationError{{
			Field:   field + ".arity",
			Message: fmt.Sprintf("negative arity %d for symbol %q", sym.Arity, sym.Name),
			Code:    ErrInvalidArity,
		}}
	}
	if sym.Arity > 0 && (sym.Kind == ir.KindField || sym.Kind == ir.KindType) {
		return []ValidationError{{
			Field:   field + ".arity",
			Message: fmt.Sprintf("arity is meaningless for %s symbol %q", sym.Kind, sym.Name),
			Code:    ErrInvalidArity,
		}}
	}
	return nil
}
