// Package archive moves handled recordings out of the inbox, into a done or
// failed location keyed by note type.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Archive subdirectories.
const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// ErrorFileSuffix names the sibling file describing why a recording failed.
const ErrorFileSuffix = "_error.txt"

// ErrSourceNotFound is returned when the source file does not exist.
var ErrSourceNotFound = errors.New("source file not found")

// Archiver moves processed files to the archive.
type Archiver interface {
	Done(ctx context.Context, sourcePath, noteType string) (string, error)
	Failed(ctx context.Context, sourcePath, noteType string, cause error) (string, error)
}

// FileArchiver implements Archiver under a root directory laid out as
// <root>/<type>/{done,failed}/.
type FileArchiver struct {
	root string
	now  func() time.Time
}

// NewFileArchiver creates a new FileArchiver rooted at root.
func NewFileArchiver(root string) *FileArchiver {
	return &FileArchiver{root: root, now: time.Now}
}

// Dir returns the archive directory for a type and outcome.
func (a *FileArchiver) Dir(noteType, outcome string) string {
	return filepath.Join(a.root, noteType, outcome)
}

// Done moves a successfully processed recording to <type>/done.
func (a *FileArchiver) Done(ctx context.Context, sourcePath, noteType string) (string, error) {
	return a.Move(ctx, sourcePath, a.Dir(noteType, DoneDir))
}

// Failed moves a recording to <type>/failed and writes <stem>_error.txt next
// to it describing cause.
func (a *FileArchiver) Failed(ctx context.Context, sourcePath, noteType string, cause error) (string, error) {
	dest, err := a.Move(ctx, sourcePath, a.Dir(noteType, FailedDir))
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(dest), filepath.Ext(dest))
	errPath := filepath.Join(filepath.Dir(dest), stem+ErrorFileSuffix)

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	body := fmt.Sprintf("file: %s\ntype: %s\ntime: %s\nerror: %s\n",
		filepath.Base(sourcePath), noteType, a.now().Format(time.RFC3339), msg)

	if err := os.WriteFile(errPath, []byte(body), 0644); err != nil {
		return dest, fmt.Errorf("write error file: %w", err)
	}
	return dest, nil
}

// Move moves sourcePath into archiveDir, creating it if needed. A name that
// is already taken gets a time suffix. If rename fails (e.g. across devices)
// the file is copied and the original deleted only after a successful copy.
func (a *FileArchiver) Move(ctx context.Context, sourcePath, archiveDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSourceNotFound
		}
		return "", err
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	destPath := a.destination(archiveDir, filepath.Base(sourcePath))

	if err := os.Rename(sourcePath, destPath); err == nil {
		return destPath, nil
	}

	if err := copyFile(sourcePath, destPath, srcInfo.Mode()); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("archive file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Remove(sourcePath); err != nil {
		return "", fmt.Errorf("remove source file: %w", err)
	}

	return destPath, nil
}

func (a *FileArchiver) destination(dir, baseName string) string {
	dest := filepath.Join(dir, baseName)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest
	}

	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)
	stamp := a.now().Format("20060102-150405")

	dest = filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, stamp, ext))
	for i := 2; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s-%d%s", stem, stamp, i, ext))
	}
}

// copyFile copies src to dst, preserving the file mode.
func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}

	return dstFile.Sync()
}
