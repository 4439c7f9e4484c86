// Package output writes finished notes into the knowledge base: the page
// itself and its link in the daily journal.
package output

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MaxCollisions bounds the numeric suffixes tried for a taken page name.
const MaxCollisions = 1000

// ErrTooManyCollisions is returned when every suffix up to MaxCollisions is taken.
var ErrTooManyCollisions = errors.New("too many pages with the same name")

// PageWriter writes note pages into a pages directory.
type PageWriter struct {
	dir string
}

// NewPageWriter creates a PageWriter for pagesDir.
func NewPageWriter(pagesDir string) *PageWriter {
	return &PageWriter{dir: pagesDir}
}

// Write saves content as <pageName>.md and returns the path and the page
// name actually used. A taken name gets a -2, -3, ... suffix; existing pages
// are never overwritten.
func (w *PageWriter) Write(ctx context.Context, pageName, content string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if pageName == "" {
		return "", "", fmt.Errorf("page name is required")
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", "", fmt.Errorf("create pages directory: %w", err)
	}

	name := pageName
	for i := 1; i <= MaxCollisions; i++ {
		if i > 1 {
			name = fmt.Sprintf("%s-%d", pageName, i)
		}
		path := filepath.Join(w.dir, name+".md")

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("create page: %w", err)
		}

		if _, err := f.WriteString(content); err != nil {
			f.Close()
			os.Remove(path)
			return "", "", fmt.Errorf("write page: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", "", fmt.Errorf("close page: %w", err)
		}
		return path, name, nil
	}

	return "", "", ErrTooManyCollisions
}

// Remove deletes a page written by Write. A page that is already gone is
// not an error.
func (w *PageWriter) Remove(path string) error {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return fmt.Errorf("page %s is outside %s", path, w.dir)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove page: %w", err)
	}
	return nil
}
