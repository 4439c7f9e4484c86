// Package voice runs the voice note service: it watches the inboxes of a
// vault, turns each recording into a note page and archives the audio.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/TechnicallyShaun/nota-scribe/internal/vault"
)

// ConfigFileName is the name of the voice config file within .nota
const ConfigFileName = "voice.json"

// EnvPrefix prefixes environment overrides, e.g. NOTA_API_URL or NOTA_LLM_MODEL.
const EnvPrefix = "NOTA"

// EnvOpenAIKey is read when no API key is configured.
const EnvOpenAIKey = "OPENAI_API_KEY"

// Default values for optional configuration fields. Relative directories are
// resolved against the vault root.
const (
	DefaultInboxDir                = "inboxes"
	DefaultGraphDir                = "."
	DefaultArchiveDir              = "archive"
	DefaultTypesDir                = ".nota/types"
	DefaultLogDir                  = ".nota/logs"
	DefaultStabilizationIntervalMs = 2000
	DefaultStabilizationChecks     = 3
	DefaultLanguage                = "en"
	DefaultMaxFileSizeMB           = 100
	DefaultRetryCount              = 3
	DefaultLLMTimeoutSeconds       = 120
	DefaultLLMConcurrency          = 4
)

// DefaultAudioExtensions are the recording formats picked up from the inboxes.
var DefaultAudioExtensions = []string{"mp3", "m4a", "wav", "ogg", "flac", "opus"}

// ErrNotConfigured is returned when the vault has no voice.json.
var ErrNotConfigured = errors.New("voice service not configured (run 'nota voice config')")

// Config represents the voice service configuration
type Config struct {
	InboxDir                string   `json:"inbox_dir" mapstructure:"inbox_dir" validate:"required"`
	GraphDir                string   `json:"graph_dir" mapstructure:"graph_dir" validate:"required"`
	ArchiveDir              string   `json:"archive_dir" mapstructure:"archive_dir" validate:"required"`
	TypesDir                string   `json:"types_dir" mapstructure:"types_dir" validate:"required"`
	LogDir                  string   `json:"log_dir" mapstructure:"log_dir"`
	APIURL                  string   `json:"api_url" mapstructure:"api_url" validate:"required,url"`
	AudioExtensions         []string `json:"audio_extensions" mapstructure:"audio_extensions" validate:"min=1,dive,required"`
	StabilizationIntervalMs int      `json:"stabilization_interval_ms" mapstructure:"stabilization_interval_ms" validate:"min=1"`
	StabilizationChecks     int      `json:"stabilization_checks" mapstructure:"stabilization_checks" validate:"min=1"`
	Language                string   `json:"language" mapstructure:"language"`
	Timestamps              bool     `json:"timestamps" mapstructure:"timestamps"`
	MaxFileSizeMB           int      `json:"max_file_size_mb" mapstructure:"max_file_size_mb" validate:"min=1"`
	RetryCount              int      `json:"retry_count" mapstructure:"retry_count" validate:"min=0,max=10"`
	MetricsAddr             string   `json:"metrics_addr,omitempty" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	LLM                     LLM      `json:"llm" mapstructure:"llm"`
}

// LLM configures the language-model endpoint used for summarization.
type LLM struct {
	BaseURL        string `json:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string `json:"api_key,omitempty" mapstructure:"api_key"`
	Model          string `json:"model,omitempty" mapstructure:"model"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds" validate:"min=1"`
	MaxConcurrency int    `json:"max_concurrency" mapstructure:"max_concurrency" validate:"min=1,max=32"`
}

// Timeout returns the per-call timeout.
func (l LLM) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// DefaultConfig returns a Config holding every default.
func DefaultConfig() *Config {
	c := &Config{RetryCount: DefaultRetryCount}
	c.ApplyDefaults()
	return c
}

// Load reads the voice configuration of the vault containing the working
// directory.
func Load() (*Config, string, error) {
	root, err := vault.FindVaultRoot()
	if err != nil {
		return nil, "", err
	}
	cfg, err := LoadFromVault(root)
	return cfg, root, err
}

// LoadFromVault reads <root>/.nota/voice.json. Missing fields take their
// defaults, NOTA_* environment variables override file values, and paths
// are expanded (~) and resolved against root. The result is validated.
func LoadFromVault(root string) (*Config, error) {
	path := ConfigPath(root)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotConfigured
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", ConfigFileName, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(EnvOpenAIKey)
	}
	cfg.ApplyDefaults()
	cfg.Resolve(root)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("inbox_dir", DefaultInboxDir)
	v.SetDefault("graph_dir", DefaultGraphDir)
	v.SetDefault("archive_dir", DefaultArchiveDir)
	v.SetDefault("types_dir", DefaultTypesDir)
	v.SetDefault("log_dir", DefaultLogDir)
	v.SetDefault("api_url", "")
	v.SetDefault("audio_extensions", DefaultAudioExtensions)
	v.SetDefault("stabilization_interval_ms", DefaultStabilizationIntervalMs)
	v.SetDefault("stabilization_checks", DefaultStabilizationChecks)
	v.SetDefault("language", DefaultLanguage)
	v.SetDefault("timestamps", false)
	v.SetDefault("max_file_size_mb", DefaultMaxFileSizeMB)
	v.SetDefault("retry_count", DefaultRetryCount)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.timeout_seconds", DefaultLLMTimeoutSeconds)
	v.SetDefault("llm.max_concurrency", DefaultLLMConcurrency)
}

// ConfigPath returns the config file location for a vault.
func ConfigPath(root string) string {
	return filepath.Join(root, vault.VaultMarkerDir, ConfigFileName)
}

// SaveToVault writes the configuration to <root>/.nota/voice.json with 0644
// permissions.
func (c *Config) SaveToVault(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ConfigPath(root)), 0755); err != nil {
		return err
	}
	return os.WriteFile(ConfigPath(root), append(data, '\n'), 0644)
}

var validate = validator.New()

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid voice config: %s", strings.Join(msgs, "; "))
}

// ApplyDefaults sets default values for optional fields that are empty or zero.
func (c *Config) ApplyDefaults() {
	if c.InboxDir == "" {
		c.InboxDir = DefaultInboxDir
	}
	if c.GraphDir == "" {
		c.GraphDir = DefaultGraphDir
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = DefaultArchiveDir
	}
	if c.TypesDir == "" {
		c.TypesDir = DefaultTypesDir
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if len(c.AudioExtensions) == 0 {
		c.AudioExtensions = append([]string(nil), DefaultAudioExtensions...)
	}
	if c.StabilizationIntervalMs == 0 {
		c.StabilizationIntervalMs = DefaultStabilizationIntervalMs
	}
	if c.StabilizationChecks == 0 {
		c.StabilizationChecks = DefaultStabilizationChecks
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.MaxFileSizeMB == 0 {
		c.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = DefaultLLMTimeoutSeconds
	}
	if c.LLM.MaxConcurrency == 0 {
		c.LLM.MaxConcurrency = DefaultLLMConcurrency
	}
}

// Resolve expands ~ and makes relative directories absolute under root.
func (c *Config) Resolve(root string) {
	c.InboxDir = resolvePath(root, c.InboxDir)
	c.GraphDir = resolvePath(root, c.GraphDir)
	c.ArchiveDir = resolvePath(root, c.ArchiveDir)
	c.TypesDir = resolvePath(root, c.TypesDir)
	c.LogDir = resolvePath(root, c.LogDir)
}

// PagesDir is where note pages are written.
func (c *Config) PagesDir() string {
	return filepath.Join(c.GraphDir, "pages")
}

// JournalsDir holds the daily journal files.
func (c *Config) JournalsDir() string {
	return filepath.Join(c.GraphDir, "journals")
}

// StabilizationInterval returns the poll interval as a duration.
func (c *Config) StabilizationInterval() time.Duration {
	return time.Duration(c.StabilizationIntervalMs) * time.Millisecond
}

// MaxFileSize returns the size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func resolvePath(root, path string) string {
	path = expandTilde(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// expandTilde expands ~ at the beginning of a path to the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
