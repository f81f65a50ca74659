package main

import (
	"io"
	"testing"
)

func TestRunHelpSucceeds(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--help"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("help should not error: %v", err)
	}
}

func TestRunUnknownCommandFails(t *testing.T) {
	if code := run([]string{"no-such-command"}); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
