package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestVersion_OutputsVersionString(t *testing.T) {
	// Save original values
	origVersion := Version
	origCommit := Commit
	defer func() {
		Version = origVersion
		Commit = origCommit
	}()

	Version = "1.2.3"
	Commit = "abc123"

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "1.2.3") {
		t.Errorf("expected output to contain version '1.2.3', got: %q", output)
	}
}

func TestVersion_IncludesCommitHash(t *testing.T) {
	// Save original values
	origVersion := Version
	origCommit := Commit
	defer func() {
		Version = origVersion
		Commit = origCommit
	}()

	Version = "2.0.0"
	Commit = "def456789"

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "def456789") {
		t.Errorf("expected output to contain commit hash 'def456789', got: %q", output)
	}
}

func TestVersion_IncludesBuildDetails(t *testing.T) {
	origDate := BuildDate
	defer func() { BuildDate = origDate }()

	BuildDate = "2026-10-16"

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "built: 2026-10-16") {
		t.Errorf("expected build date in output, got: %q", output)
	}
	if !strings.Contains(output, runtime.Version()) {
		t.Errorf("expected Go version in output, got: %q", output)
	}
}
