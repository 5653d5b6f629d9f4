// Package linux defines the capability contracts shared by every backend:
// the filesystem, process execution and network surfaces, their value types,
// and the closed set of errors they may return.
//
// Cancellation sits outside that set: an operation cut short by its context
// returns the context's error unwrapped, so errors.Is(err, context.Canceled)
// and errors.Is(err, context.DeadlineExceeded) hold on every backend.
package linux

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperation is returned when a backend cannot perform an operation at all.
	ErrUnsupportedOperation = errors.New("operation not supported by this backend")
	// ErrProcessIDNotFound is returned when a backend cannot observe a process id.
	ErrProcessIDNotFound = errors.New("process id not available")
	ErrStdinNotPiped     = errors.New("stdin is not piped")
	ErrStdoutNotPiped    = errors.New("stdout is not piped")
	ErrStderrNotPiped    = errors.New("stderr is not piped")
	// ErrStreamPipedButNotFound marks a redirected stream whose channel end is missing.
	ErrStreamPipedButNotFound = errors.New("stream is piped but its endpoint was not found")
)

// IOError carries an OS- or peer-reported failure. Err is kept verbatim.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// OtherError wraps a dependency error that fits no other kind.
type OtherError struct {
	Err error
}

func (e *OtherError) Error() string {
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *OtherError) Unwrap() error {
	return e.Err
}

// NewIOError wraps err unless it is nil, already classified or a context error.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// NewOtherError wraps err unless it is nil, already classified or a context error.
func NewOtherError(err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &OtherError{Err: err}
}

func IsIO(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

func IsOther(err error) bool {
	var otherErr *OtherError
	return errors.As(err, &otherErr)
}

// IsContextError reports whether err comes from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isClassified(err error) bool {
	if IsIO(err) || IsOther(err) || IsContextError(err) {
		return true
	}
	for _, sentinel := range []error{
		ErrUnsupportedOperation,
		ErrProcessIDNotFound,
		ErrStdinNotPiped,
		ErrStdoutNotPiped,
		ErrStderrNotPiped,
		ErrStreamPipedButNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
