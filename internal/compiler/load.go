package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/mpcompat/internal/ir"
)

// LoadMode controls how errors are handled during group loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the groups compiled from a directory.
type LoadResult struct {
	Groups    []ir.GroupSpec // declaration order
	FileCount int
}

// LoadError represents an error that occurred during group loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeNoGroups    = "E007" // No group declarations
)

// LoadGroups loads and compiles every group declared in the CUE files of dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadGroups(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("groups directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing groups directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	groups, errs := compileGroups(value, mode)
	return &LoadResult{Groups: groups, FileCount: len(cueFiles)}, errs
}

// CompileSource compiles the groups declared in one CUE document, such as an
// embedded declaration file. All errors are joined.
func CompileSource(filename string, src []byte) ([]ir.GroupSpec, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: formatCUEError(err).Error()}
	}
	groups, errs := compileGroups(value, LoadModeCollectAll)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return groups, nil
}

// compileGroups compiles and validates the top-level group struct.
func compileGroups(value cue.Value, mode LoadMode) ([]ir.GroupSpec, []error) {
	var groups []ir.GroupSpec
	var errs []error

	groupsVal := value.LookupPath(cue.ParsePath("group"))
	if !groupsVal.Exists() {
		return nil, []error{&LoadError{Code: ErrCodeNoGroups, Message: "no group declarations found"}}
	}

	iter, err := groupsVal.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating groups: %v", err)}}
	}

	for iter.Next() {
		label := selectorName(iter.Selector())
		spec, compileErr := CompileGroup(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, "group."+label))
			if mode == LoadModeFailFast {
				return groups, errs
			}
			continue
		}

		if verrs := Validate(spec); len(verrs) > 0 {
			for _, verr := range verrs {
				errs = append(errs, &LoadError{
					Code:    verr.Code,
					Message: fmt.Sprintf("group.%s.%s: %s", label, verr.Field, verr.Message),
					Pos:     iter.Value().Pos(),
				})
				if mode == LoadModeFailFast {
					return groups, errs
				}
			}
			continue
		}

		groups = append(groups, *spec)
	}

	return groups, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeGeneric,
			Message: fmt.Sprintf("%s.%s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
