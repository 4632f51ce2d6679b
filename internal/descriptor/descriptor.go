// Package descriptor loads collaborator interface descriptors from CUE.
//
// A descriptor file declares interfaces and the positional arguments of
// each method:
//
//	interface: UserRepository: methods: {
//		ExistsByEmail: args: ["email"]
//		Save: args: ["user"]
//	}
//
// An interface without a methods field accepts calls to any method.
package descriptor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/doubles/internal/double"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Error reports an invalid descriptor, with the CUE position when known.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile converts one interface value into a Descriptor. The interface
// name is the last path selector of v.
func Compile(v cue.Value) (double.Descriptor, error) {
	if err := v.Err(); err != nil {
		return double.Descriptor{}, formatCUEError(err)
	}

	var desc double.Descriptor
	if sels := v.Path().Selectors(); len(sels) > 0 {
		desc.Name = sels[len(sels)-1].String()
	}
	if !identRE.MatchString(desc.Name) {
		return double.Descriptor{}, &Error{Field: "interface", Message: fmt.Sprintf("invalid interface name %q", desc.Name), Pos: v.Pos()}
	}

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if !methodsVal.Exists() {
		return desc, nil
	}

	iter, err := methodsVal.Fields()
	if err != nil {
		return double.Descriptor{}, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		if !identRE.MatchString(name) {
			return double.Descriptor{}, &Error{Field: "methods", Message: fmt.Sprintf("invalid method name %q", name), Pos: iter.Value().Pos()}
		}
		arity, err := countArgs(iter.Value())
		if err != nil {
			return double.Descriptor{}, err
		}
		desc.Methods = append(desc.Methods, double.M(name, arity))
	}
	if len(desc.Methods) == 0 {
		return double.Descriptor{}, &Error{Field: "methods", Message: "methods is declared but empty", Pos: methodsVal.Pos()}
	}
	return desc, nil
}

// countArgs returns the number of declared arguments. Each entry names
// the argument and must be a string.
func countArgs(method cue.Value) (int, error) {
	argsVal := method.LookupPath(cue.ParsePath("args"))
	if !argsVal.Exists() {
		return 0, nil
	}
	list, err := argsVal.List()
	if err != nil {
		return 0, formatCUEError(err)
	}
	n := 0
	for list.Next() {
		if _, err := list.Value().String(); err != nil {
			return 0, &Error{Field: "args", Message: "argument names must be strings", Pos: list.Value().Pos()}
		}
		n++
	}
	return n, nil
}

// LoadFile compiles every interface declared in a CUE file, in
// declaration order.
func LoadFile(path string) ([]double.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return parse(data, path)
}

// LoadFiles loads several files. An interface declared in more than one
// file is an error.
func LoadFiles(paths ...string) ([]double.Descriptor, error) {
	var out []double.Descriptor
	seen := make(map[string]string)
	for _, path := range paths {
		descs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if prev, ok := seen[d.Name]; ok {
				return nil, &Error{Field: "interface", Message: fmt.Sprintf("%s declared in %s and %s", d.Name, prev, path)}
			}
			seen[d.Name] = path
			out = append(out, d)
		}
	}
	return out, nil
}

// LoadDir loads every .cue file under dir, in lexical path order.
func LoadDir(dir string) ([]double.Descriptor, error) {
	files, err := FindFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return LoadFiles(files...)
}

// FindFiles walks dir and returns the .cue files under it, sorted.
func FindFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

func parse(data []byte, filename string) ([]double.Descriptor, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	ifaces := value.LookupPath(cue.ParsePath("interface"))
	if !ifaces.Exists() {
		return nil, &Error{Field: "interface", Message: fmt.Sprintf("no interfaces declared in %s", filename)}
	}

	iter, err := ifaces.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []double.Descriptor
	for iter.Next() {
		desc, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
