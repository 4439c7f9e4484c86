package vault

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
)

// VaultMetadata represents the contents of vault.json
type VaultMetadata struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
	Version   string `json:"version"`
}

// graphFolders is the knowledge-base layout: Logseq pages and journals, one
// inbox per note type and the recording archive.
var graphFolders = []string{
	PagesFolder,
	JournalsFolder,
	InboxesFolder,
	ArchiveFolder,
}

// TypesDir holds the note type configurations within the vault.
var TypesDir = filepath.Join(VaultMarkerDir, "types")

var ErrNameEmpty = errors.New("vault name cannot be empty")

// InitResult reports what Init changed.
type InitResult struct {
	AlreadyExisted bool
	FoldersCreated []string
	TypesWritten   []string
}

// Init initializes a vault at the given path with the specified name.
// It creates .nota/vault.json, the graph folders, an inbox per built-in note
// type and the default type configurations. Running it on an existing vault
// keeps vault.json and only fills in what is missing. Existing folders with
// matching names (case-insensitive) are skipped.
func Init(path, name string) (*InitResult, error) {
	if name == "" {
		return nil, ErrNameEmpty
	}

	result := &InitResult{}
	notaDir := filepath.Join(path, VaultMarkerDir)

	if _, err := os.Stat(notaDir); err == nil {
		result.AlreadyExisted = true
	} else {
		if err := os.MkdirAll(notaDir, 0755); err != nil {
			return nil, err
		}
		if err := writeMetadata(notaDir, name); err != nil {
			return nil, err
		}
	}

	existingFolders, err := getExistingFolders(path)
	if err != nil {
		return nil, err
	}

	for _, folder := range graphFolders {
		if folderExistsCaseInsensitive(folder, existingFolders) {
			continue
		}
		if err := os.MkdirAll(filepath.Join(path, folder), 0755); err != nil {
			return nil, err
		}
		result.FoldersCreated = append(result.FoldersCreated, folder)
	}

	inboxRoot := filepath.Join(path, InboxesFolder)
	existingInboxes, err := getExistingFolders(inboxRoot)
	if err != nil {
		return nil, err
	}
	for _, noteType := range notetype.DefaultTypes() {
		if folderExistsCaseInsensitive(noteType, existingInboxes) {
			continue
		}
		if err := os.MkdirAll(filepath.Join(inboxRoot, noteType), 0755); err != nil {
			return nil, err
		}
		result.FoldersCreated = append(result.FoldersCreated, filepath.Join(InboxesFolder, noteType))
	}

	written, err := notetype.WriteDefaults(filepath.Join(path, TypesDir))
	result.TypesWritten = written
	if err != nil {
		return nil, err
	}

	return result, nil
}

func writeMetadata(notaDir, name string) error {
	metadata := VaultMetadata{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0",
	}

	metadataJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(notaDir, VaultConfigFile), metadataJSON, 0644)
}

// getExistingFolders returns a list of existing folder names in the given path
func getExistingFolders(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var folders []string
	for _, entry := range entries {
		if entry.IsDir() {
			folders = append(folders, entry.Name())
		}
	}
	return folders, nil
}

// folderExistsCaseInsensitive checks if a folder name exists in the list (case-insensitive)
func folderExistsCaseInsensitive(name string, existingFolders []string) bool {
	for _, existing := range existingFolders {
		if strings.EqualFold(existing, name) {
			return true
		}
	}
	return false
}
