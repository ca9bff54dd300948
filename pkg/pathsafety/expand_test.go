package pathsafety

import (
	"testing"

	"github.com/triagekit/engine/pkg/triageerrors"
)

func TestExpandPercentAndDollarForms(t *testing.T) {
	env := map[string]string{
		"SYSTEMROOT": `C:\Windows`,
		"HOME":       "/home/analyst",
	}

	got, err := ExpandFromEnviron(`%SYSTEMROOT%\System32`, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := `C:\Windows\System32`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, err = ExpandFromEnviron("$HOME/logs", env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "/home/analyst/logs"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	got, err = ExpandFromEnviron("${HOME}/logs", env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "/home/analyst/logs"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExpandUnknownVariable(t *testing.T) {
	_, err := ExpandFromEnviron("$DOES_NOT_EXIST/logs", map[string]string{})
	if code, ok := triageerrors.CodeOf(err); !ok || code != triageerrors.CodeUnknownVariable {
		t.Fatalf("expected CodeUnknownVariable, got %v", err)
	}
}

func TestExpandIdempotentOnPlainPath(t *testing.T) {
	const path = "/var/log/syslog"
	first, err := ExpandFromEnviron(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ExpandFromEnviron(first, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second || first != path {
		t.Fatalf("expansion of a variable-free path should be a no-op: %q -> %q", path, first)
	}
}
