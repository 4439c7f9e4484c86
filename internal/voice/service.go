package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/archive"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/client"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/llm"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/logging"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/metadata"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/note"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/output"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/stabilizer"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/status"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/summarize"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/watcher"
)

// Per-recording errors.
var (
	ErrFileTooLarge = errors.New("file exceeds max_file_size_mb")
	ErrNotReady     = errors.New("file not ready")
)

// Job is one recording to process.
type Job struct {
	Path     string
	Type     string
	Detected time.Time
	// Keep leaves the recording in place instead of archiving it.
	Keep bool
}

// Draft is a summarized recording that has not been written yet.
type Draft struct {
	RunID         string
	Job           Job
	Type          *notetype.Config
	Recorded      time.Time
	PageName      string
	Transcription *client.TranscriptionResult
	Outcome       summarize.Outcome
}

// Content returns the rendered page.
func (d *Draft) Content() string {
	return d.Outcome.Note.Render()
}

// Result describes a processed recording.
type Result struct {
	RunID      string
	PagePath   string
	PageName   string
	Journaled  bool
	ArchivedTo string
	Fallback   bool
}

// Service orchestrates the voice note pipeline.
type Service struct {
	config      *Config
	logger      *logging.FileLogger
	watcher     FileWatcher
	stabilizer  Stabilizer
	transcriber Transcriber
	completer   summarize.Completer
	types       TypeResolver
	summarizer  Summarizer
	pages       PageStore
	journal     JournalStore
	archiver    Archiver
	metrics     *Metrics
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

// Option overrides a service component.
type Option func(*Service)

// WithLogger sets the logger. The service closes it on shutdown.
func WithLogger(l *logging.FileLogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithWatcher sets the inbox watcher.
func WithWatcher(w FileWatcher) Option {
	return func(s *Service) { s.watcher = w }
}

// WithStabilizer sets the file readiness check.
func WithStabilizer(st Stabilizer) Option {
	return func(s *Service) { s.stabilizer = st }
}

// WithTranscriber sets the speech-to-text client, used as is (no retry wrapper).
func WithTranscriber(t Transcriber) Option {
	return func(s *Service) { s.transcriber = t }
}

// WithCompleter sets the language model behind the default summarizer.
func WithCompleter(c summarize.Completer) Option {
	return func(s *Service) { s.completer = c }
}

// WithSummarizer replaces the summarization pipeline.
func WithSummarizer(sm Summarizer) Option {
	return func(s *Service) { s.summarizer = sm }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a voice service with every component initialized from cfg.
func NewService(cfg *Config, opts ...Option) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{config: cfg, inFlight: make(map[string]bool)}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, err := logging.New(logging.Config{LogDir: cfg.LogDir, Prefix: "voice"})
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		s.logger = logger
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.stabilizer == nil {
		s.stabilizer = stabilizer.NewPollStabilizer(cfg.StabilizationInterval(), cfg.StabilizationChecks)
	}
	if s.transcriber == nil {
		s.transcriber = client.NewRetryClient(
			client.NewWhisperASRClient(cfg.APIURL),
			client.WithRetryCount(cfg.RetryCount),
			client.WithLogger(s.logger.WithComponent("client")),
		)
	}
	if s.summarizer == nil {
		if s.completer == nil {
			s.completer = llm.New(llm.Config{
				BaseURL: cfg.LLM.BaseURL,
				APIKey:  cfg.LLM.APIKey,
				Model:   cfg.LLM.Model,
				Timeout: cfg.LLM.Timeout(),
			})
		}
		s.summarizer = summarize.New(s.completer,
			summarize.WithLogger(s.logger.WithComponent("pipeline")),
			summarize.WithObserver(s.metrics),
			summarize.WithConcurrency(cfg.LLM.MaxConcurrency),
			summarize.WithCallTimeout(cfg.LLM.Timeout()),
		)
	}
	s.types = notetype.NewResolver(cfg.TypesDir)
	s.pages = output.NewPageWriter(cfg.PagesDir())
	s.journal = output.NewJournal(cfg.JournalsDir())
	s.archiver = archive.NewFileArchiver(cfg.ArchiveDir)

	return s, nil
}

// Logger returns the service logger.
func (s *Service) Logger() *logging.FileLogger {
	return s.logger
}

// InboxDirs creates an inbox per configured note type and returns every
// inbox directory, sorted. The directory name is the note type.
func (s *Service) InboxDirs() ([]string, error) {
	if err := os.MkdirAll(s.config.InboxDir, 0755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}
	for _, t := range s.types.ListAvailable() {
		if err := os.MkdirAll(filepath.Join(s.config.InboxDir, t), 0755); err != nil {
			return nil, fmt.Errorf("create inbox for %s: %w", t, err)
		}
	}

	entries, err := os.ReadDir(s.config.InboxDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() && e.Name()[0] != '.' {
			dirs = append(dirs, filepath.Join(s.config.InboxDir, e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run watches the inboxes and blocks until ctx is cancelled or SIGINT/SIGTERM
// arrives. Recordings already waiting in the inboxes are processed first.
func (s *Service) Run(ctx context.Context) error {
	log := s.logger.WithComponent("service")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.watcher == nil {
		fw, err := watcher.NewInotifyWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		s.watcher = fw
	}

	dirs, err := s.InboxDirs()
	if err != nil {
		return err
	}

	fields := []logging.Field{
		logging.Strings("inboxes", dirs),
		logging.String("api_url", s.config.APIURL),
		logging.String("graph_dir", s.config.GraphDir),
		logging.Strings("extensions", s.config.AudioExtensions),
	}
	if m, ok := s.completer.(interface{ Model() string }); ok {
		fields = append(fields, logging.String("model", m.Model()))
	}
	log.Info("starting voice service", fields...)

	if s.config.MetricsAddr != "" {
		go func() {
			if err := s.metrics.Serve(ctx, s.config.MetricsAddr); err != nil {
				log.Error("metrics server failed", err, logging.String("addr", s.config.MetricsAddr))
			}
		}()
	}

	events, err := s.watcher.Watch(ctx, dirs, s.config.AudioExtensions)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	pending := watcher.Scan(dirs, s.config.AudioExtensions)
	if len(pending) > 0 {
		log.Info("processing waiting recordings", logging.Int("count", len(pending)))
	}
	for _, ev := range pending {
		s.dispatch(ctx, ev)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("context cancelled, shutting down")
			return s.shutdown()

		case sig := <-sigCh:
			log.Info("received signal, shutting down", logging.String("signal", sig.String()))
			cancel()
			return s.shutdown()

		case ev, ok := <-events:
			if !ok {
				log.Info("watcher channel closed")
				cancel()
				return s.shutdown()
			}
			s.dispatch(ctx, ev)
		}
	}
}

// dispatch processes ev in its own goroutine unless the same path is
// already being handled.
func (s *Service) dispatch(ctx context.Context, ev watcher.FileEvent) {
	s.mu.Lock()
	if s.inFlight[ev.Path] {
		s.mu.Unlock()
		return
	}
	s.inFlight[ev.Path] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, ev.Path)
			s.mu.Unlock()
		}()
		s.handle(ctx, ev)
	}()
}

func (s *Service) handle(ctx context.Context, ev watcher.FileEvent) {
	noteType := filepath.Base(ev.Dir)
	log := s.logger.WithComponent("service").With(
		logging.String(status.FieldFile, ev.Path),
		logging.String(status.FieldType, noteType),
	)

	if _, err := os.Stat(ev.Path); os.IsNotExist(err) {
		return
	}

	log.Debug("waiting for file to stabilize")
	if _, err := s.stabilizer.WaitForStable(ctx, ev.Path); err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, stabilizer.ErrEmptyFile):
			s.metrics.Recording(noteType, OutcomeSkipped)
			log.Debug("file is empty, waiting for data")
		default:
			s.metrics.Recording(noteType, OutcomeSkipped)
			log.Warn("file not ready", logging.String(logging.KeyError, err.Error()))
		}
		return
	}

	if _, err := s.Process(ctx, Job{Path: ev.Path, Type: noteType, Detected: ev.Timestamp}); err != nil && ctx.Err() == nil {
		log.Debug("recording not processed", logging.String(logging.KeyError, err.Error()))
	}
}

// Prepare transcribes and summarizes a recording without writing anything.
func (s *Service) Prepare(ctx context.Context, job Job) (*Draft, error) {
	d := &Draft{RunID: uuid.NewString(), Job: job}
	log := s.logger.WithComponent("service").With(
		logging.String("run_id", d.RunID),
		logging.String(status.FieldFile, job.Path),
		logging.String(status.FieldType, job.Type),
	)

	info, err := os.Stat(job.Path)
	if err != nil {
		return d, fmt.Errorf("stat recording: %w", err)
	}
	if info.Size() == 0 {
		return d, fmt.Errorf("%w: empty file", ErrNotReady)
	}
	if info.Size() > s.config.MaxFileSize() {
		return d, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}

	cfg, err := s.types.Load(job.Type)
	if err != nil {
		return d, err
	}
	d.Type = cfg

	log.Info("sending for transcription", logging.Int64("size", info.Size()))
	start := time.Now()
	tr, err := s.transcriber.Transcribe(ctx, job.Path, client.TranscribeOptions{Language: s.config.Language})
	s.metrics.ObserveTranscription(time.Since(start))
	if err != nil {
		return d, fmt.Errorf("transcribe: %w", err)
	}
	d.Transcription = tr
	log.Info("transcription complete",
		logging.String("language", tr.Language),
		logging.Int("segments", len(tr.Segments)),
		logging.Duration("audio", tr.Duration()),
	)

	detected := job.Detected
	if detected.IsZero() {
		detected = info.ModTime()
	}
	d.Recorded = metadata.RecordedAt(job.Path, detected)
	d.PageName = note.PageName(filepath.Base(job.Path), d.Recorded)

	d.Outcome = s.summarizer.Run(ctx, cfg, summarize.Input{
		Filename:   filepath.Base(job.Path),
		Transcript: tr.Transcript(),
		Timestamps: s.config.Timestamps,
		Recorded:   d.Recorded,
	})
	if d.Outcome.Fallback() {
		log.Warn("summary unavailable, writing fallback note",
			logging.String(logging.KeyError, d.Outcome.Failure.Error()))
	}
	return d, nil
}

// Publish writes the page and links it from today's journal.
func (s *Service) Publish(ctx context.Context, d *Draft) (*Result, error) {
	res := &Result{RunID: d.RunID, Fallback: d.Outcome.Fallback()}

	path, name, err := s.pages.Write(ctx, d.PageName, d.Content())
	if err != nil {
		return res, fmt.Errorf("write page: %w", err)
	}
	res.PagePath, res.PageName = path, name

	appended, err := s.journal.Append(ctx, s.now(), output.LinkLine(name, d.Type.Tag))
	if err != nil {
		if rmErr := s.pages.Remove(path); rmErr != nil {
			s.logger.WithComponent("service").Error("failed to remove unlinked page", rmErr,
				logging.String("run_id", d.RunID),
				logging.String(status.FieldPage, name),
			)
		} else {
			res.PagePath, res.PageName = "", ""
		}
		return res, fmt.Errorf("append journal: %w", err)
	}
	res.Journaled = appended
	return res, nil
}

// Process runs one recording end to end: transcribe, summarize, write the
// page, link it from the journal and archive the audio under done/. Any
// failure archives the audio under failed/ with an error file instead. A
// cancelled context leaves the recording in the inbox.
func (s *Service) Process(ctx context.Context, job Job) (*Result, error) {
	defer s.metrics.Begin()()
	start := time.Now()

	d, err := s.Prepare(ctx, job)
	if err != nil {
		return s.fail(ctx, d, err)
	}

	res, err := s.Publish(ctx, d)
	if err != nil {
		return s.fail(ctx, d, err)
	}

	if !job.Keep {
		dest, err := s.archiver.Done(ctx, job.Path, job.Type)
		if err != nil {
			s.logger.WithComponent("service").Error("failed to archive recording", err,
				logging.String("run_id", d.RunID),
				logging.String(status.FieldFile, job.Path),
			)
		}
		res.ArchivedTo = dest
	}

	outcome := OutcomeDone
	if res.Fallback {
		outcome = OutcomeFallback
	}
	s.metrics.Recording(job.Type, outcome)

	s.logger.WithComponent("service").Info(status.MsgProcessed,
		logging.String("run_id", d.RunID),
		logging.String(status.FieldFile, job.Path),
		logging.String(status.FieldType, job.Type),
		logging.String(status.FieldPage, res.PageName),
		logging.Bool(status.FieldFallback, res.Fallback),
		logging.Bool("journaled", res.Journaled),
		logging.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *Service) fail(ctx context.Context, d *Draft, cause error) (*Result, error) {
	res := &Result{RunID: d.RunID}
	job := d.Job

	if ctx.Err() != nil {
		return res, cause
	}
	if errors.Is(cause, ErrNotReady) {
		s.metrics.Recording(job.Type, OutcomeSkipped)
		return res, cause
	}

	log := s.logger.WithComponent("service")
	if !job.Keep {
		dest, err := s.archiver.Failed(ctx, job.Path, job.Type, cause)
		if err != nil {
			log.Error("failed to archive recording", err,
				logging.String("run_id", d.RunID),
				logging.String(status.FieldFile, job.Path),
			)
		}
		res.ArchivedTo = dest
	}

	s.metrics.Recording(job.Type, OutcomeFailed)
	log.Error(status.MsgFailed, cause,
		logging.String("run_id", d.RunID),
		logging.String(status.FieldFile, job.Path),
		logging.String(status.FieldType, job.Type),
		logging.String("archived_to", res.ArchivedTo),
	)
	return res, cause
}

// shutdown performs graceful shutdown of the service.
func (s *Service) shutdown() error {
	log := s.logger.WithComponent("service")

	if err := s.watcher.Stop(); err != nil {
		log.Error("error stopping watcher", err)
	}

	log.Info("waiting for in-flight processing to complete")
	s.wg.Wait()

	log.Info("voice service stopped")
	return s.logger.Close()
}
