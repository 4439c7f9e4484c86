// Package vault locates and lays out a knowledge-base vault: a Logseq graph
// plus the .nota directory holding the voice service state.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotInVault is returned when the current directory is not within a vault.
var ErrNotInVault = errors.New("not in a vault")

// VaultMarkerDir is the directory that marks a vault root.
const VaultMarkerDir = ".nota"

// VaultConfigFile is the configuration file within the marker directory.
const VaultConfigFile = "vault.json"

// EnvVaultRoot is the environment variable for overriding vault root detection.
const EnvVaultRoot = "NOTA_VAULT_ROOT"

// Folders of the knowledge-base layout, relative to the vault root.
const (
	PagesFolder    = "pages"
	JournalsFolder = "journals"
	InboxesFolder  = "inboxes"
	ArchiveFolder  = "archive"
)

// Vault is an opened vault.
type Vault struct {
	Root     string
	Metadata VaultMetadata
}

// Open reads the vault at root. It fails with ErrNotInVault when root has no
// readable .nota/vault.json.
func Open(root string) (*Vault, error) {
	meta, err := readMetadata(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInVault, root)
	}
	return &Vault{Root: root, Metadata: *meta}, nil
}

// Find opens the vault containing the working directory.
func Find() (*Vault, error) {
	root, err := FindVaultRoot()
	if err != nil {
		return nil, err
	}
	return Open(root)
}

// Path joins elem onto the vault root.
func (v *Vault) Path(elem ...string) string {
	return filepath.Join(append([]string{v.Root}, elem...)...)
}

// InboxDir is the inbox of one note type.
func (v *Vault) InboxDir(noteType string) string {
	return v.Path(InboxesFolder, noteType)
}

// TypesDir holds the note type configurations.
func (v *Vault) TypesDir() string {
	return v.Path(TypesDir)
}

func readMetadata(root string) (*VaultMetadata, error) {
	info, err := os.Stat(filepath.Join(root, VaultMarkerDir))
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", VaultMarkerDir)
	}

	data, err := os.ReadFile(filepath.Join(root, VaultMarkerDir, VaultConfigFile))
	if err != nil {
		return nil, err
	}
	var meta VaultMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// IsVault checks if the given path is a valid vault root: a .nota directory
// holding a vault.json that parses.
func IsVault(path string) bool {
	_, err := readMetadata(path)
	return err == nil
}

// FindVaultRoot finds the root of the vault containing the current working directory.
// If NOTA_VAULT_ROOT is set it must point at a vault and takes precedence.
// Returns ErrNotInVault if no vault is found.
func FindVaultRoot() (string, error) {
	if envRoot := os.Getenv(EnvVaultRoot); envRoot != "" {
		absPath, err := filepath.Abs(envRoot)
		if err != nil || !IsVault(absPath) {
			return "", ErrNotInVault
		}
		return absPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindVaultRootFrom(cwd)
}

// FindVaultRootFrom walks up from startPath to the nearest vault root.
func FindVaultRootFrom(startPath string) (string, error) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}

	for {
		if IsVault(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotInVault
		}
		current = parent
	}
}
