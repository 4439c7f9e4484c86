// Package pidfile tracks the running voice service of a vault.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Common errors
var (
	ErrNoPIDFile      = errors.New("no PID file found")
	ErrInvalidPID     = errors.New("invalid PID in file")
	ErrAlreadyRunning = errors.New("voice service already running")
)

// FileName is the PID file name inside the vault's .nota directory.
const FileName = "voice.pid"

const (
	dirPerm  = 0755
	filePerm = 0644
)

// File is the PID file of one vault.
type File struct {
	path string
}

// New returns the PID file for the vault at root (<root>/.nota/voice.pid).
func New(root string) *File {
	return &File{path: filepath.Join(root, ".nota", FileName)}
}

// At returns a PID file at an explicit path.
func At(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Acquire records pid, refusing if another live process holds the file.
// A stale file left by a dead process is replaced.
func (f *File) Acquire(pid int) error {
	running, other, err := f.IsRunning()
	if err != nil && !errors.Is(err, ErrInvalidPID) {
		return err
	}
	if running && other != pid {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, other)
	}
	return f.Write(pid)
}

// Write creates the PID file with the given process ID.
func (f *File) Write(pid int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), dirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	content := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(f.path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. It returns ErrNoPIDFile when the file is
// absent and ErrInvalidPID when it holds anything but a positive integer.
func (f *File) Read() (int, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive, along with its
// PID. No file yields (false, 0, nil); a stale file yields (false, pid, nil).
func (f *File) IsRunning() (bool, int, error) {
	pid, err := f.Read()
	if err != nil {
		if errors.Is(err, ErrNoPIDFile) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return Alive(pid), pid, nil
}

// CleanStale removes the PID file if its process is gone and reports
// whether it did.
func (f *File) CleanStale() (bool, error) {
	running, pid, err := f.IsRunning()
	if err != nil || running || pid == 0 {
		return false, err
	}
	if err := f.Remove(); err != nil {
		return false, err
	}
	return true, nil
}

// Alive probes pid with signal 0. EPERM means the process exists but
// belongs to someone else.
func Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
