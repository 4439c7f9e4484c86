// Package status summarises a day of voice service activity from its JSON log.
package status

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/logging"
)

// Messages the service logs once per recording; status counts them.
const (
	MsgProcessed = "recording processed"
	MsgFailed    = "recording failed"
)

// Fields carried by MsgProcessed and MsgFailed entries.
const (
	FieldFile     = "file"
	FieldPage     = "page"
	FieldType     = "type"
	FieldFallback = "fallback"
)

// Stats holds parsed statistics from the log file.
type Stats struct {
	FilesProcessed int
	Fallbacks      int
	Failed         int
	Errors         int
	ByType         map[string]int
	LastProcessed  *ProcessedFile
}

// Types returns the note types seen, sorted.
func (s *Stats) Types() []string {
	out := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ProcessedFile holds information about the last processed file.
type ProcessedFile struct {
	Timestamp time.Time
	Path      string
	Page      string
	Type      string
	Fallback  bool
}

type entry struct {
	Time     string `json:"ts"`
	Level    string `json:"level"`
	Message  string `json:"msg"`
	File     string `json:"file"`
	Page     string `json:"page"`
	Type     string `json:"type"`
	Fallback bool   `json:"fallback"`
}

// LogPath returns the log file for day in dir.
func LogPath(dir, prefix string, day time.Time) string {
	return logging.FilePath(dir, prefix, day)
}

// ParseDay parses the log for day. A missing file yields empty stats.
func ParseDay(dir, prefix string, day time.Time) (*Stats, error) {
	return ParseLogFile(LogPath(dir, prefix, day))
}

// ParseLogFile parses a JSON-lines log file and returns statistics.
// Lines that are not JSON are ignored. A missing file yields empty stats.
func ParseLogFile(path string) (*Stats, error) {
	stats := &Stats{ByType: map[string]int{}}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] != '{' {
			continue
		}

		var e entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}

		if strings.EqualFold(e.Level, "error") {
			stats.Errors++
		}

		switch e.Message {
		case MsgProcessed:
			stats.FilesProcessed++
			if e.Fallback {
				stats.Fallbacks++
			}
			if e.Type != "" {
				stats.ByType[e.Type]++
			}
			ts, err := time.Parse(time.RFC3339, e.Time)
			if err == nil {
				stats.LastProcessed = &ProcessedFile{
					Timestamp: ts,
					Path:      e.File,
					Page:      e.Page,
					Type:      e.Type,
					Fallback:  e.Fallback,
				}
			}
		case MsgFailed:
			stats.Failed++
		}
	}

	return stats, scanner.Err()
}

// FormatTimestamp formats a timestamp for display.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

// BaseName returns just the filename from a path.
func BaseName(path string) string {
	return filepath.Base(strings.TrimSuffix(path, "/"))
}
