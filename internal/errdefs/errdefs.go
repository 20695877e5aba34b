// Package errdefs defines the error kinds a backup run can fail with.
//
// Callers classify failures with errors.Is against the Err* sentinels; the
// underlying cause stays reachable through the same chain.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrArgument   = errors.New("argument error")
	ErrConnection = errors.New("connection error")
	ErrPath       = errors.New("path error")
	ErrIO         = errors.New("io error")
)

type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error() + ": " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func Argument(op, path string, err error) error {
	return &Error{Kind: ErrArgument, Op: op, Path: path, Err: err}
}

func Connection(op, host string, err error) error {
	return &Error{Kind: ErrConnection, Op: op, Path: host, Err: err}
}

func Path(op, path string, err error) error {
	return &Error{Kind: ErrPath, Op: op, Path: path, Err: err}
}

func IO(op, path string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

// Argumentf builds an ArgumentError from a message alone.
func Argumentf(format string, args ...any) error {
	return Argument(fmt.Sprintf(format, args...), "", nil)
}
