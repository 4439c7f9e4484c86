package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create source dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
	return path
}

func TestFileArchiver_Done(t *testing.T) {
	tmpDir := t.TempDir()
	source := writeSource(t, filepath.Join(tmpDir, "inboxes", "bjj"), "lesson.m4a", "fake audio content")

	archiver := NewFileArchiver(filepath.Join(tmpDir, "archive"))
	dest, err := archiver.Done(context.Background(), source, "bjj")
	if err != nil {
		t.Fatalf("Done failed: %v", err)
	}

	want := filepath.Join(tmpDir, "archive", "bjj", DoneDir, "lesson.m4a")
	if dest != want {
		t.Errorf("dest = %s, want %s", dest, want)
	}

	content, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read archived file: %v", err)
	}
	if string(content) != "fake audio content" {
		t.Errorf("archived content mismatch: %q", content)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("original file should have been removed")
	}
}

func TestFileArchiver_FailedWritesErrorFile(t *testing.T) {
	tmpDir := t.TempDir()
	source := writeSource(t, tmpDir, "sync.mp3", "audio")

	archiver := NewFileArchiver(filepath.Join(tmpDir, "archive"))
	archiver.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	dest, err := archiver.Failed(context.Background(), source, "meeting", errors.New("config not found for type \"meeting\""))
	if err != nil {
		t.Fatalf("Failed returned error: %v", err)
	}

	failedDir := filepath.Join(tmpDir, "archive", "meeting", FailedDir)
	if filepath.Dir(dest) != failedDir {
		t.Errorf("dest dir = %s, want %s", filepath.Dir(dest), failedDir)
	}

	body, err := os.ReadFile(filepath.Join(failedDir, "sync"+ErrorFileSuffix))
	if err != nil {
		t.Fatalf("error file missing: %v", err)
	}
	for _, want := range []string{"file: sync.mp3", "type: meeting", "time: 2026-05-01T12:00:00Z", `error: config not found for type "meeting"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("error file missing %q:\n%s", want, body)
		}
	}
}

func TestFileArchiver_CollisionKeepsBoth(t *testing.T) {
	tmpDir := t.TempDir()
	archiver := NewFileArchiver(filepath.Join(tmpDir, "archive"))
	archiver.now = func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }

	var dests []string
	for i := 0; i < 3; i++ {
		source := writeSource(t, tmpDir, "note.m4a", strings.Repeat("x", i+1))
		dest, err := archiver.Done(context.Background(), source, "bjj")
		if err != nil {
			t.Fatalf("Done #%d failed: %v", i, err)
		}
		dests = append(dests, filepath.Base(dest))
	}

	want := []string{"note.m4a", "note-20260501-093000.m4a", "note-20260501-093000-2.m4a"}
	for i := range want {
		if dests[i] != want[i] {
			t.Errorf("dest[%d] = %s, want %s", i, dests[i], want[i])
		}
	}
}

func TestFileArchiver_SourceNotFound(t *testing.T) {
	archiver := NewFileArchiver(t.TempDir())

	_, err := archiver.Done(context.Background(), "/nonexistent/file.m4a", "bjj")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestFileArchiver_ContextCancellation(t *testing.T) {
	tmpDir := t.TempDir()
	source := writeSource(t, tmpDir, "source.m4a", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileArchiver(filepath.Join(tmpDir, "archive")).Done(ctx, source, "bjj")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("original file should not have been touched on cancellation")
	}
}

func TestFileArchiver_ArchiveDirBlocked_OriginalPreserved(t *testing.T) {
	tmpDir := t.TempDir()
	source := writeSource(t, tmpDir, "source.m4a", "important content")

	root := filepath.Join(tmpDir, "archive")
	if err := os.WriteFile(root, []byte("blocking file"), 0644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	if _, err := NewFileArchiver(root).Done(context.Background(), source, "bjj"); err == nil {
		t.Error("expected error when archive dir creation fails")
	}

	content, err := os.ReadFile(source)
	if err != nil {
		t.Fatalf("original file should be preserved: %v", err)
	}
	if string(content) != "important content" {
		t.Error("original file content was modified")
	}
}

func TestCopyFile_PreservesFileMode(t *testing.T) {
	tmpDir := t.TempDir()
	src := writeSource(t, tmpDir, "source.m4a", "content")
	os.Chmod(src, 0600)

	dst := filepath.Join(tmpDir, "copy.m4a")
	if err := copyFile(src, dst, 0600); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("failed to stat copy: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode not preserved: got %o, want %o", info.Mode().Perm(), 0600)
	}
	if err := copyFile(src, dst, 0600); err == nil {
		t.Error("copyFile must not overwrite an existing file")
	}
}
