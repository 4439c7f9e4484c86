package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCmd_RequiresNameArgument(t *testing.T) {
	cmd := NewInitCmd()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	if err == nil {
		t.Error("expected error when no name argument provided")
	}
}

func TestInitCmd_InitializesVault(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(tmpDir)

	cmd := NewInitCmd()
	cmd.SetArgs([]string{"test-vault"})
	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	notaDir := filepath.Join(tmpDir, ".nota")
	if _, err := os.Stat(notaDir); os.IsNotExist(err) {
		t.Error("expected .nota directory to be created")
	}
}

func TestInitCmd_PrintsSuccessMessage(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(tmpDir)

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"my-vault"})
	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	output := buf.String()
	if output != "Initialized vault 'my-vault'\n" {
		t.Errorf("expected success message, got: %q", output)
	}
}

func TestInitCmd_ReportsExistingVault(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(tmpDir)

	// Create .nota directory to simulate existing vault
	os.Mkdir(filepath.Join(tmpDir, ".nota"), 0755)

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"test-vault"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error on existing vault, got: %v", err)
	}

	if !strings.HasPrefix(buf.String(), "Vault already initialized. Created missing folders:") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	buf.Reset()
	cmd = NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"test-vault"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if buf.String() != "Vault already initialized\n" {
		t.Errorf("expected nothing left to create, got: %q", buf.String())
	}
}

func TestInitCmd_CreatesInboxPerNoteType(t *testing.T) {
	tmpDir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(tmpDir)

	cmd := NewInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"test-vault"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	for _, dir := range []string{"pages", "journals", "inboxes/bjj", "inboxes/meeting", ".nota/types"} {
		if _, err := os.Stat(filepath.Join(tmpDir, dir)); err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
		}
	}
}
