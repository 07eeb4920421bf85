package xerrors

import (
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

type stacker interface{ StackPCs() []uintptr }

type pcer interface{ PC() uintptr }

func funcNames(pcs []uintptr) []string {
	var out []string
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		out = append(out, fr.Function)
		if !more {
			return out
		}
	}
}

func framesContain(pcs []uintptr, sub string) bool {
	for _, fn := range funcNames(pcs) {
		if strings.Contains(fn, sub) {
			return true
		}
	}
	return false
}

func TestNew(t *testing.T) {
	err := New("snapshot: document is nil")
	if err.Error() != "snapshot: document is nil" {
		t.Fatalf("Error() = %q", err.Error())
	}
	var s stacker
	if !errors.As(err, &s) {
		t.Fatal("New error carries no stack")
	}
	if !framesContain(s.StackPCs(), "TestNew") {
		t.Fatalf("stack does not start at caller: %v", funcNames(s.StackPCs()))
	}
	if framesContain(s.StackPCs()[:1], "xerrors.stackOf") {
		t.Fatal("stack includes xerrors internals")
	}
}

func TestNewf(t *testing.T) {
	err := Newf("post %d has invalid id", 7)
	if err.Error() != "post 7 has invalid id" {
		t.Fatalf("Error() = %q", err.Error())
	}
	var s stacker
	if !errors.As(err, &s) || len(s.StackPCs()) == 0 {
		t.Fatal("Newf error carries no stack")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil {
		t.Fatal("wrapping nil must return nil")
	}

	err := Wrapf(fs.ErrNotExist, "read seed %s", "content.yaml")
	if err.Error() != "read seed content.yaml: file does not exist" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("errors.Is lost the cause")
	}
	var p pcer
	if !errors.As(err, &p) || p.PC() == 0 {
		t.Fatal("Wrapf recorded no caller frame")
	}
	fr, _ := runtime.CallersFrames([]uintptr{p.PC()}).Next()
	if !strings.Contains(fr.Function, "TestWrap") {
		t.Fatalf("frame = %s, want the test function", fr.Function)
	}
}

func TestWrap_Chain(t *testing.T) {
	root := errors.New("connection refused")
	err := Wrap(Wrap(root, "ping"), "open sqlite")
	if err.Error() != "open sqlite: ping: connection refused" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if errors.Unwrap(errors.Unwrap(err)) != root {
		t.Fatal("chain does not unwrap to root")
	}
}

func TestWithStack(t *testing.T) {
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) != nil")
	}
	base := errors.New("boom")
	err := WithStack(base)
	if err.Error() != "boom" || errors.Unwrap(err) != base {
		t.Fatal("WithStack changed the error")
	}
}

func TestEnsureTrace(t *testing.T) {
	if EnsureTrace(nil) != nil {
		t.Fatal("EnsureTrace(nil) != nil")
	}

	plain := errors.New("plain")
	traced := EnsureTrace(plain)
	var s stacker
	if !errors.As(traced, &s) {
		t.Fatal("plain error did not gain a stack")
	}
	if !errors.Is(traced, plain) {
		t.Fatal("cause lost")
	}

	// already traced, directly or further down the chain
	if again := EnsureTrace(traced); again != traced {
		t.Fatal("EnsureTrace stacked twice")
	}
	wrapped := Wrap(New("inner"), "outer")
	if EnsureTrace(wrapped) != wrapped {
		t.Fatal("EnsureTrace ignored a stack deeper in the chain")
	}
}
