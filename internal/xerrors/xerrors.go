// Package xerrors records where errors are created and wrapped so the logger
// can point at the failing line. New and Newf capture a stack, Wrap and Wrapf
// capture a single caller frame.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxStackDepth = 64

// traced carries the call stack captured when the error was created.
type traced struct {
	err error
	pcs []uintptr
}

func (t *traced) Error() string       { return t.err.Error() }
func (t *traced) Unwrap() error       { return t.err }
func (t *traced) StackPCs() []uintptr { return t.pcs }

// annotated prefixes an error with context and remembers one frame.
type annotated struct {
	err error
	msg string
	pc  uintptr
}

func (a *annotated) Error() string { return a.msg + ": " + a.err.Error() }
func (a *annotated) Unwrap() error { return a.err }
func (a *annotated) PC() uintptr   { return a.pc }

// skip counts frames above the exported function that called in.
func stackOf(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	return pcs[:runtime.Callers(3+skip, pcs)]
}

func frameOf(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(3+skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

func New(msg string) error { return &traced{err: errors.New(msg), pcs: stackOf(0)} }

func Newf(format string, args ...any) error {
	return &traced{err: fmt.Errorf(format, args...), pcs: stackOf(0)}
}

// WithStack attaches the current stack to err.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &traced{err: err, pcs: stackOf(0)}
}

// EnsureTrace is WithStack unless something in err's chain already has a stack.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && len(hs.StackPCs()) > 0 {
		return err
	}
	return &traced{err: err, pcs: stackOf(0)}
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &annotated{err: err, msg: msg, pc: frameOf(0)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &annotated{err: err, msg: fmt.Sprintf(format, args...), pc: frameOf(0)}
}
