// Package watcher detects recordings arriving in the inbox directories.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// FileEvent represents a detected file.
type FileEvent struct {
	Path      string
	Dir       string
	Size      int64
	Timestamp time.Time
}

// FileWatcher detects new files in a set of directories.
type FileWatcher interface {
	Watch(ctx context.Context, dirs []string, extensions []string) (<-chan FileEvent, error)
	Stop() error
}

// InotifyWatcher implements FileWatcher using Linux inotify.
type InotifyWatcher struct {
	fd         int
	mu         sync.Mutex
	dirs       map[int]string
	extensions []string
	stopCh     chan struct{}
	stopped    bool
}

// NewInotifyWatcher creates a new inotify-based file watcher.
func NewInotifyWatcher() (*InotifyWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, err
	}

	return &InotifyWatcher{
		fd:     fd,
		dirs:   make(map[int]string),
		stopCh: make(chan struct{}),
	}, nil
}

// Watch starts watching every directory for files with one of the given
// extensions (case-insensitive, with or without the leading dot).
func (w *InotifyWatcher) Watch(ctx context.Context, dirs []string, extensions []string) (<-chan FileEvent, error) {
	w.mu.Lock()
	for _, dir := range dirs {
		wd, err := unix.InotifyAddWatch(w.fd, dir, unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO)
		if err != nil {
			w.mu.Unlock()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[wd] = dir
	}
	w.extensions = extensions
	w.mu.Unlock()

	events := make(chan FileEvent, 100)

	go w.readEvents(ctx, events)

	return events, nil
}

// Stop stops the watcher and releases resources.
func (w *InotifyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	for wd := range w.dirs {
		unix.InotifyRmWatch(w.fd, uint32(wd))
	}
	return unix.Close(w.fd)
}

func (w *InotifyWatcher) readEvents(ctx context.Context, events chan<- FileEvent) {
	defer close(events)

	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		n, err := unix.Read(w.fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return
		}

		if n < unix.SizeofInotifyEvent {
			continue
		}

		offset := 0
		for offset < n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(event.Len)

			if nameLen > 0 {
				nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name := strings.TrimRight(string(nameBytes), "\x00")

				w.mu.Lock()
				dir, ok := w.dirs[int(event.Wd)]
				exts := w.extensions
				w.mu.Unlock()

				if ok && Matches(name, exts) {
					fullPath := filepath.Join(dir, name)
					if info, err := os.Stat(fullPath); err == nil {
						select {
						case events <- FileEvent{Path: fullPath, Dir: dir, Size: info.Size(), Timestamp: time.Now()}:
						case <-ctx.Done():
							return
						}
					}
				}
			}

			offset += unix.SizeofInotifyEvent + nameLen
		}
	}
}

// Scan lists files already present in dirs that match the extensions,
// oldest first. Missing directories are skipped.
func Scan(dirs []string, extensions []string) []FileEvent {
	var found []FileEvent
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !Matches(entry.Name(), extensions) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			found = append(found, FileEvent{
				Path:      filepath.Join(dir, entry.Name()),
				Dir:       dir,
				Size:      info.Size(),
				Timestamp: info.ModTime(),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Timestamp.Before(found[j].Timestamp)
	})
	return found
}

// Matches reports whether name has one of the extensions. Hidden files
// never match; an empty list matches everything else.
func Matches(name string, extensions []string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if len(extensions) == 0 {
		return true
	}

	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range extensions {
		if strings.EqualFold(ext, strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}
