package voice

import (
	"context"
	"time"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/client"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/summarize"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/watcher"
)

// FileWatcher detects new recordings in the inbox directories.
type FileWatcher interface {
	// Watch emits an event for every matching file closed or moved into dirs.
	Watch(ctx context.Context, dirs []string, extensions []string) (<-chan watcher.FileEvent, error)
	// Stop stops the file watcher.
	Stop() error
}

// Stabilizer waits for a file to finish writing and returns its final size.
type Stabilizer interface {
	WaitForStable(ctx context.Context, path string) (int64, error)
}

// Transcriber sends audio to the speech-to-text service.
type Transcriber = client.TranscriptionClient

// TypeResolver loads note type configurations by name.
type TypeResolver interface {
	Load(name string) (*notetype.Config, error)
	ListAvailable() []string
}

// Summarizer turns a transcript into a note. It never fails; a failed run
// yields the fallback note.
type Summarizer interface {
	Run(ctx context.Context, cfg *notetype.Config, in summarize.Input) summarize.Outcome
}

// PageStore writes note pages. Remove undoes a Write whose page could not
// be linked.
type PageStore interface {
	Write(ctx context.Context, pageName, content string) (path, name string, err error)
	Remove(path string) error
}

// JournalStore appends link lines to daily journals.
type JournalStore interface {
	Append(ctx context.Context, day time.Time, line string) (bool, error)
}

// Archiver files handled recordings under done/ or failed/ per type.
type Archiver interface {
	Done(ctx context.Context, sourcePath, noteType string) (string, error)
	Failed(ctx context.Context, sourcePath, noteType string, cause error) (string, error)
}
