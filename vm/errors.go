package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when calling into a script that is not parsed.
	ErrNotReady = errors.New("vm: script not ready")

	// ErrUnknownScript is returned for lookups of unregistered scripts.
	ErrUnknownScript = errors.New("vm: unknown script")

	// ErrUnknownFunction is returned for invalid function handles.
	ErrUnknownFunction = errors.New("vm: unknown function")
)

// PreparseError reports a malformed declaration. The script it belongs to
// is left in the Error state.
type PreparseError struct {
	Script string
	Pos    int32
	Msg    string
}

func (e *PreparseError) Error() string {
	return fmt.Sprintf("ERROR: %s (%s:%d)", e.Msg, e.Script, e.Pos)
}

// LinkError reports an include or append that could not be resolved.
type LinkError struct {
	Script string
	Msg    string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("ERROR: %s (%s)", e.Msg, e.Script)
}

// ExecError is a runtime fault raised by the executor.
type ExecError struct {
	Func string // full name of the faulting function
	Pos  int32
	Msg  string
}

func (e *ExecError) Error() string {
	if e.Func == "" {
		return "ERROR: " + e.Msg
	}
	return fmt.Sprintf("ERROR: %s (in %s:%d)", e.Msg, e.Func, e.Pos)
}
