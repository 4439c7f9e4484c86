package voice

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestVault(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	notaDir := filepath.Join(root, ".nota")
	if err := os.MkdirAll(notaDir, 0755); err != nil {
		t.Fatalf("failed to create .nota dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(notaDir, "vault.json"), []byte(`{"name":"test"}`), 0644); err != nil {
		t.Fatalf("failed to create vault.json: %v", err)
	}
	return root
}

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	if err := os.WriteFile(ConfigPath(root), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoadFromVault_Defaults(t *testing.T) {
	root := setupTestVault(t)
	writeConfig(t, root, `{"api_url": "http://localhost:9000"}`)

	cfg, err := LoadFromVault(root)
	if err != nil {
		t.Fatalf("LoadFromVault failed: %v", err)
	}

	if cfg.InboxDir != filepath.Join(root, "inboxes") {
		t.Errorf("InboxDir = %s", cfg.InboxDir)
	}
	if cfg.GraphDir != root {
		t.Errorf("GraphDir = %s, want vault root", cfg.GraphDir)
	}
	if cfg.ArchiveDir != filepath.Join(root, "archive") {
		t.Errorf("ArchiveDir = %s", cfg.ArchiveDir)
	}
	if cfg.TypesDir != filepath.Join(root, ".nota", "types") {
		t.Errorf("TypesDir = %s", cfg.TypesDir)
	}
	if cfg.PagesDir() != filepath.Join(root, "pages") || cfg.JournalsDir() != filepath.Join(root, "journals") {
		t.Errorf("unexpected graph dirs: %s, %s", cfg.PagesDir(), cfg.JournalsDir())
	}
	if len(cfg.AudioExtensions) != 6 {
		t.Errorf("AudioExtensions = %v", cfg.AudioExtensions)
	}
	if cfg.Language != "en" || cfg.RetryCount != DefaultRetryCount || cfg.MaxFileSizeMB != DefaultMaxFileSizeMB {
		t.Errorf("unexpected scalar defaults: %+v", cfg)
	}
	if cfg.LLM.TimeoutSeconds != 120 || cfg.LLM.MaxConcurrency != 4 {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Timestamps {
		t.Error("timestamps should default to off")
	}
}

func TestLoadFromVault_FileValues(t *testing.T) {
	root := setupTestVault(t)
	writeConfig(t, root, `{
  "api_url": "http://whisper:9000",
  "inbox_dir": "/srv/sync/voice",
  "archive_dir": "~/voice-archive",
  "audio_extensions": ["m4a"],
  "timestamps": true,
  "retry_count": 5,
  "metrics_addr": ":9091",
  "llm": {"base_url": "http://ollama:11434/v1", "model": "llama3", "max_concurrency": 2}
}`)

	cfg, err := LoadFromVault(root)
	if err != nil {
		t.Fatalf("LoadFromVault failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.InboxDir != "/srv/sync/voice" {
		t.Errorf("InboxDir = %s", cfg.InboxDir)
	}
	if cfg.ArchiveDir != filepath.Join(home, "voice-archive") {
		t.Errorf("ArchiveDir = %s", cfg.ArchiveDir)
	}
	if len(cfg.AudioExtensions) != 1 || cfg.AudioExtensions[0] != "m4a" {
		t.Errorf("AudioExtensions = %v", cfg.AudioExtensions)
	}
	if !cfg.Timestamps || cfg.RetryCount != 5 || cfg.MetricsAddr != ":9091" {
		t.Errorf("unexpected values: %+v", cfg)
	}
	if cfg.LLM.BaseURL != "http://ollama:11434/v1" || cfg.LLM.Model != "llama3" || cfg.LLM.MaxConcurrency != 2 {
		t.Errorf("unexpected llm: %+v", cfg.LLM)
	}
	if cfg.LLM.TimeoutSeconds != 120 {
		t.Errorf("nested default lost: %d", cfg.LLM.TimeoutSeconds)
	}
}

func TestLoadFromVault_EnvOverrides(t *testing.T) {
	root := setupTestVault(t)
	writeConfig(t, root, `{"api_url": "http://localhost:9000", "llm": {"model": "file-model"}}`)

	t.Setenv("NOTA_API_URL", "http://override:9000")
	t.Setenv("NOTA_LLM_MODEL", "env-model")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := LoadFromVault(root)
	if err != nil {
		t.Fatalf("LoadFromVault failed: %v", err)
	}
	if cfg.APIURL != "http://override:9000" {
		t.Errorf("APIURL = %s", cfg.APIURL)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %s", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestLoadFromVault_ConfiguredKeyWinsOverOpenAIEnv(t *testing.T) {
	root := setupTestVault(t)
	writeConfig(t, root, `{"api_url": "http://localhost:9000", "llm": {"api_key": "sk-file"}}`)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := LoadFromVault(root)
	if err != nil {
		t.Fatalf("LoadFromVault failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-file" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
}

func TestLoadFromVault_NotConfigured(t *testing.T) {
	_, err := LoadFromVault(setupTestVault(t))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLoadFromVault_InvalidJSON(t *testing.T) {
	root := setupTestVault(t)
	writeConfig(t, root, `{not json`)

	if _, err := LoadFromVault(root); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing api url", func(c *Config) { c.APIURL = "" }, "APIURL"},
		{"bad api url", func(c *Config) { c.APIURL = "not a url" }, "APIURL"},
		{"zero checks", func(c *Config) { c.StabilizationChecks = -1 }, "StabilizationChecks"},
		{"empty extension", func(c *Config) { c.AudioExtensions = []string{"mp3", ""} }, "AudioExtensions"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "nope" }, "MetricsAddr"},
		{"concurrency too high", func(c *Config) { c.LLM.MaxConcurrency = 100 }, "MaxConcurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.APIURL = "http://localhost:9000"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyDefaults_PreservesExistingValues(t *testing.T) {
	cfg := &Config{
		InboxDir:            "in",
		Language:            "auto",
		StabilizationChecks: 7,
		AudioExtensions:     []string{"wav"},
		LLM:                 LLM{MaxConcurrency: 1},
	}
	cfg.ApplyDefaults()

	if cfg.InboxDir != "in" || cfg.Language != "auto" || cfg.StabilizationChecks != 7 {
		t.Errorf("existing values overwritten: %+v", cfg)
	}
	if len(cfg.AudioExtensions) != 1 || cfg.LLM.MaxConcurrency != 1 {
		t.Errorf("existing values overwritten: %+v", cfg)
	}
	if cfg.ArchiveDir != DefaultArchiveDir {
		t.Errorf("missing default ArchiveDir: %s", cfg.ArchiveDir)
	}
}

func TestSaveToVault_RoundTrip(t *testing.T) {
	root := setupTestVault(t)

	cfg := DefaultConfig()
	cfg.APIURL = "http://localhost:9000"
	cfg.Timestamps = true
	cfg.LLM.Model = "gpt-4o-mini"

	if err := cfg.SaveToVault(root); err != nil {
		t.Fatalf("SaveToVault failed: %v", err)
	}

	info, err := os.Stat(ConfigPath(root))
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected 0644, got %o", info.Mode().Perm())
	}

	data, _ := os.ReadFile(ConfigPath(root))
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved config is not JSON: %v", err)
	}
	if raw["inbox_dir"] != "inboxes" {
		t.Errorf("relative dirs should be saved as written, got %v", raw["inbox_dir"])
	}

	loaded, err := LoadFromVault(root)
	if err != nil {
		t.Fatalf("LoadFromVault failed: %v", err)
	}
	if !loaded.Timestamps || loaded.LLM.Model != "gpt-4o-mini" || loaded.APIURL != cfg.APIURL {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/notes/voice", filepath.Join(home, "notes/voice")},
		{"/abs/path", "/abs/path"},
		{"rel/~/path", "rel/~/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandTilde(tt.in); got != tt.want {
			t.Errorf("expandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
