// Package main provides tests for the playdwh CLI.
package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/leapstack-labs/playdwh/internal/cli"
)

func TestVersionCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), "playdwh v") {
		t.Errorf("version output should contain 'playdwh v', got: %s", buf.String())
	}
}

func TestHelpCommand(t *testing.T) {
	cmd := cli.NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Errorf("help command error = %v", err)
	}

	output := buf.String()
	for _, want := range []string{"reset", "run", "plan", "check", "history"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should mention %q", want)
		}
	}
}
