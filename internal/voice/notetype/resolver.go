package notetype

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is matched by errors.Is for any unknown note type.
var ErrNotFound = errors.New("note type configuration not found")

// NotFoundError reports an unknown type together with the types that exist.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("config not found for type %q (available types: %s)", e.Name, available)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

const configExt = ".json"

// Resolver reads type configurations from a directory of <name>.json files.
type Resolver struct {
	dir string
}

// NewResolver creates a resolver rooted at dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir}
}

// Dir returns the configuration directory.
func (r *Resolver) Dir() string {
	return r.dir
}

// Load reads, defaults and validates the configuration for name.
func (r *Resolver) Load(name string) (*Config, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, &NotFoundError{Name: name, Available: r.ListAvailable()}
	}

	path := filepath.Join(r.dir, name+configExt)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Name: name, Available: r.ListAvailable()}
		}
		return nil, fmt.Errorf("read type config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse type config %s: %w", filepath.Base(path), err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid type config %q: %w", name, err)
	}
	return &cfg, nil
}

// ListAvailable returns the sorted type names present in the directory.
// It returns an empty list when the directory is missing or unreadable.
func (r *Resolver) ListAvailable() []string {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return []string{}
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, configExt) || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(name, configExt))
	}
	sort.Strings(names)
	return names
}

//go:embed defaults/*.json
var defaultsFS embed.FS

// DefaultTypes lists the built-in note types shipped with the binary.
func DefaultTypes() []string {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), configExt))
	}
	sort.Strings(names)
	return names
}

// WriteDefaults copies the built-in type configurations into dir.
// Existing files are left untouched. Returns the names that were written.
func WriteDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create types directory: %w", err)
	}

	var written []string
	for _, name := range DefaultTypes() {
		dest := filepath.Join(dir, name+configExt)
		if _, err := os.Stat(dest); err == nil {
			continue
		}

		data, err := defaultsFS.ReadFile("defaults/" + name + configExt)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", dest, err)
		}
		written = append(written, name)
	}
	return written, nil
}
