package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Scenario definition files are CUE documents of the form:
//
//	scenario: {
//		clightningOnly: {
//			description: "clightning without any peripheral services"
//			args: { enableClightning: "true" }
//			memoryMiB: 2560
//		}
//	}
//
// The args values are raw Nix expressions substituted into the tests
// entry point call.

// CompileError reports a malformed scenario definition with its CUE
// source position when available.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads and compiles all scenario definitions from a directory
// of CUE files. The directory must exist and contain at least one .cue
// file.
func LoadDir(dir string) ([]Spec, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("scenarios directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing scenarios directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning scenarios directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	scenariosVal := value.LookupPath(cue.ParsePath("scenario"))
	if !scenariosVal.Exists() {
		return nil, fmt.Errorf("no scenario field found in %s", dir)
	}

	iter, err := scenariosVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating scenarios: %w", formatCUEError(err))
	}

	var specs []Spec
	for iter.Next() {
		spec, err := compileSpec(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no scenarios defined in %s", dir)
	}
	return specs, nil
}

// compileSpec parses one scenario entry into a Spec.
func compileSpec(name string, v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &Spec{Name: name}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if !descVal.Exists() {
		return nil, &CompileError{
			Field:   "description",
			Message: "description is required",
			Pos:     v.Pos(),
		}
	}
	desc, err := descVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Description = desc

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		argIter, err := argsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Args = make(map[string]string)
		for argIter.Next() {
			raw, err := argIter.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "args." + argIter.Label(),
					Message: "argument values must be strings holding Nix expressions",
					Pos:     argIter.Value().Pos(),
				}
			}
			spec.Args[argIter.Label()] = raw
		}
	}

	spec.NumCPUs, err = optionalInt(v, "numCPUs")
	if err != nil {
		return nil, err
	}
	spec.MemoryMiB, err = optionalInt(v, "memoryMiB")
	if err != nil {
		return nil, err
	}

	qemuVal := v.LookupPath(cue.ParsePath("extraQEMUOpts"))
	if qemuVal.Exists() {
		opts, err := qemuVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.ExtraQEMUOpts = opts
	}

	return spec, nil
}

// optionalInt reads an optional positive integer field.
func optionalInt(v cue.Value, field string) (int, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return 0, nil
	}
	n, err := fieldVal.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n <= 0 {
		return 0, &CompileError{
			Field:   field,
			Message: "must be positive",
			Pos:     fieldVal.Pos(),
		}
	}
	return int(n), nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
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

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
