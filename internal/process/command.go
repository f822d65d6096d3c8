// Package process starts the volt-test engine, feeds it a job specification
// and supervises it until it finishes.
//
// Execute is the single entry point used by the rest of the module: it
// encodes the specification, launches the engine (Launch), drains both output
// channels (Pump), enforces the time budget and reacts to interrupts
// (Controller, Registry), and folds everything into an Outcome. Every pipe,
// temporary file and process started by Execute is released before it
// returns.
package process

import (
	"slices"

	"github.com/volt-test/volt/internal/jobspec"
)

// InputMode selects how the job specification reaches the engine.
type InputMode int

const (
	// InputStdin streams the specification on the engine standard input.
	InputStdin InputMode = iota
	// InputFile writes the specification to a temporary file and passes its
	// path as the last argument.
	InputFile
)

func (m InputMode) String() string {
	switch m {
	case InputStdin:
		return "stdin"
	case InputFile:
		return "file"
	}
	return "unknown"
}

// Command describes an engine invocation.
type Command struct {
	// Path to the engine binary, resolved by Locate.
	Path string
	Args []string
	// Env is the child environment, nil means the current one.
	Env []string
	Dir string

	Input InputMode
	// FileFlag precedes the spec path in InputFile mode, e.g. "-config".
	FileFlag string
	// TempDir holds the spec file in InputFile mode, empty means os.TempDir.
	TempDir string
	// Format of the encoded specification, JSON by default.
	Format jobspec.Format
}

func (c Command) args(specPath string) []string {
	args := slices.Clone(c.Args)
	if c.Input == InputFile {
		if c.FileFlag != "" {
			args = append(args, c.FileFlag)
		}
		args = append(args, specPath)
	}
	return args
}
