package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/note"
)

// JournalDateFormat is the journal filename layout.
const JournalDateFormat = "2006_01_02"

// LinkLine returns the journal bullet linking a voice note page.
func LinkLine(pageName, tag string) string {
	return fmt.Sprintf("- %s [[%s]] #%s #%s", note.TitleIcon, pageName, tag, note.InboxTag)
}

// Journal appends lines to daily journal files.
type Journal struct {
	dir string
}

// NewJournal creates a Journal for journalsDir.
func NewJournal(journalsDir string) *Journal {
	return &Journal{dir: journalsDir}
}

// Path returns the journal file for the given day.
func (j *Journal) Path(day time.Time) string {
	return filepath.Join(j.dir, day.Format(JournalDateFormat)+".md")
}

// Append adds line to the journal for day, creating the file if needed.
// The file is held under an exclusive flock for the read-check-write so
// concurrent writers never interleave. A line already present (compared
// after trimming) is not added again; appended reports whether it was.
func (j *Journal) Append(ctx context.Context, day time.Time, line string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return false, fmt.Errorf("journal line is empty")
	}

	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return false, fmt.Errorf("create journals directory: %w", err)
	}

	f, err := os.OpenFile(j.Path(day), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return false, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return false, fmt.Errorf("lock journal: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	existing, err := io.ReadAll(f)
	if err != nil {
		return false, fmt.Errorf("read journal: %w", err)
	}

	for _, l := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(l) == line {
			return false, nil
		}
	}

	var sb strings.Builder
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		sb.WriteString("\n")
	}
	sb.WriteString(line)
	sb.WriteString("\n")

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return false, fmt.Errorf("seek journal: %w", err)
	}
	if _, err := f.WriteString(sb.String()); err != nil {
		return false, fmt.Errorf("append journal: %w", err)
	}
	return true, nil
}
