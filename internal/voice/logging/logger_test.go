package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger(t *testing.T, config Config) (*FileLogger, string) {
	t.Helper()

	logDir := filepath.Join(t.TempDir(), "logs")
	config.LogDir = logDir
	if config.Prefix == "" {
		config.Prefix = "test"
	}

	logger, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return logger, logDir
}

func TestNew_CreatesLogFile(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{})
	defer logger.Close()

	today := time.Now().UTC().Format("2006-01-02")
	expectedPath := filepath.Join(logDir, "test-"+today+".log")

	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Errorf("expected log file to exist at %s", expectedPath)
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	logger, err := New(Config{LogDir: logDir})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	expectedPath := FilePath(logDir, "voice", time.Now())
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Errorf("expected log file with default prefix at %s", expectedPath)
	}
}

func TestFileLogger_WritesJSONLines(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{Component: "watcher"})

	logger.Info("file detected",
		String("file", "meeting notes.m4a"),
		Int64("size", 2400000),
		Duration("elapsed", 5*time.Second),
	)
	logger.Close()

	entries := readEntries(t, logDir, "test")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]

	if e[KeyLevel] != "INFO" {
		t.Errorf("level = %v", e[KeyLevel])
	}
	if e[KeyComponent] != "watcher" {
		t.Errorf("component = %v", e[KeyComponent])
	}
	if e[KeyMessage] != "file detected" {
		t.Errorf("msg = %v", e[KeyMessage])
	}
	if e["file"] != "meeting notes.m4a" {
		t.Errorf("file = %v", e["file"])
	}
	if e["size"] != float64(2400000) {
		t.Errorf("size = %v", e["size"])
	}
	if e["elapsed"] != "5s" {
		t.Errorf("elapsed = %v", e["elapsed"])
	}

	ts, _ := e[KeyTime].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Errorf("expected RFC3339 UTC timestamp, got %q", ts)
	}
}

func TestFileLogger_Error(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{})

	logger.Error("something failed", os.ErrNotExist)
	logger.Error("no cause", nil)
	logger.Close()

	entries := readEntries(t, logDir, "test")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0][KeyLevel] != "ERROR" {
		t.Errorf("level = %v", entries[0][KeyLevel])
	}
	if entries[0][KeyError] != os.ErrNotExist.Error() {
		t.Errorf("error = %v", entries[0][KeyError])
	}
	if _, ok := entries[1][KeyError]; ok {
		t.Error("nil error should not add an error key")
	}
}

func TestFileLogger_DebugLevels(t *testing.T) {
	t.Run("filtered by default", func(t *testing.T) {
		logger, logDir := newTestLogger(t, Config{})
		logger.Debug("debug info")
		logger.Close()

		if n := len(readEntries(t, logDir, "test")); n != 0 {
			t.Errorf("expected DEBUG to be filtered out, got %d entries", n)
		}
	})

	t.Run("enabled with WithMinLevel", func(t *testing.T) {
		logger, logDir := newTestLogger(t, Config{}.WithMinLevel(LevelDebug))
		logger.Debug("debug info")
		logger.Close()

		entries := readEntries(t, logDir, "test")
		if len(entries) != 1 || entries[0][KeyLevel] != "DEBUG" {
			t.Errorf("expected one DEBUG entry, got %v", entries)
		}
	})
}

func TestFileLogger_WithComponentAndFields(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{})

	watcher := logger.WithComponent("watcher")
	watcher.Info("file detected")
	watcher.WithComponent("service").Info("processing")
	logger.With(String("run_id", "abc")).Warn("slow")
	logger.Close()

	entries := readEntries(t, logDir, "test")
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0][KeyComponent] != "watcher" {
		t.Errorf("component = %v", entries[0][KeyComponent])
	}
	if entries[1][KeyComponent] != "service" {
		t.Errorf("component should be replaced, got %v", entries[1][KeyComponent])
	}
	if entries[2]["run_id"] != "abc" || entries[2][KeyLevel] != "WARN" {
		t.Errorf("unexpected entry: %v", entries[2])
	}
}

func TestFileLogger_CleanOldLogs(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		t.Fatalf("failed to create log dir: %v", err)
	}

	oldLogPath := FilePath(logDir, "test", time.Now().AddDate(0, 0, -35))
	recentLogPath := FilePath(logDir, "test", time.Now().AddDate(0, 0, -5))
	otherPath := filepath.Join(logDir, "other-2000-01-01.log")
	for _, p := range []string{oldLogPath, recentLogPath, otherPath} {
		if err := os.WriteFile(p, []byte("{}\n"), 0644); err != nil {
			t.Fatalf("failed to create log: %v", err)
		}
	}

	logger, err := New(Config{LogDir: logDir, Prefix: "test", RetentionDays: 30})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(oldLogPath); !os.IsNotExist(err) {
		t.Errorf("expected old log file to be deleted")
	}
	if _, err := os.Stat(recentLogPath); os.IsNotExist(err) {
		t.Errorf("expected recent log file to still exist")
	}
	if _, err := os.Stat(otherPath); os.IsNotExist(err) {
		t.Errorf("files with another prefix must be kept")
	}
}

func TestFileLogger_LogPath(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{})
	defer logger.Close()

	if got, want := logger.LogPath(), FilePath(logDir, "test", time.Now()); got != want {
		t.Errorf("LogPath() = %s, want %s", got, want)
	}
	if Nop().LogPath() != "" {
		t.Error("Nop logger should have no path")
	}
}

func TestFileLogger_WriteAfterCloseReopens(t *testing.T) {
	logger, logDir := newTestLogger(t, Config{})

	logger.Info("before")
	logger.Close()
	logger.Info("after")
	logger.Close()

	if n := len(readEntries(t, logDir, "test")); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
}

func TestFromZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core))

	logger.With(String("file", "a.m4a")).Info("hello")

	all := logs.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(all))
	}
	if all[0].ContextMap()["file"] != "a.m4a" {
		t.Errorf("unexpected context: %v", all[0].ContextMap())
	}
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNew_ErrorOnInvalidLogDir(t *testing.T) {
	blockingFile := filepath.Join(t.TempDir(), "logs")
	if err := os.WriteFile(blockingFile, []byte("blocker"), 0644); err != nil {
		t.Fatalf("failed to create blocking file: %v", err)
	}

	if _, err := New(Config{LogDir: blockingFile, Prefix: "test"}); err == nil {
		t.Error("expected error when log directory cannot be created")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Prefix != "voice" {
		t.Errorf("expected default prefix 'voice', got '%s'", config.Prefix)
	}
	if config.RetentionDays != 30 {
		t.Errorf("expected default retention 30 days, got %d", config.RetentionDays)
	}
	if config.MinLevel != LevelInfo {
		t.Errorf("expected default min level INFO")
	}
	if !strings.Contains(config.LogDir, filepath.Join(".nota", "logs")) {
		t.Errorf("expected default log dir to contain .nota/logs, got %s", config.LogDir)
	}
}

func readEntries(t *testing.T, logDir, prefix string) []map[string]any {
	t.Helper()

	content, err := os.ReadFile(FilePath(logDir, prefix, time.Now()))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}
