package summarize

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/correct"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/logging"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/note"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
	"github.com/TechnicallyShaun/nota-scribe/internal/voice/outline"
)

// Defaults for pipeline options.
const (
	DefaultConcurrency = 4
	DefaultCallTimeout = 2 * time.Minute
)

// State is a step of one pipeline run.
type State int

const (
	StateCorrecting State = iota
	StateExtracting
	StateSynthesizing
	StateNormalizing
	StateAssembling
	StateDone
	StateFailed
	StateFallbackAssembling
)

func (s State) String() string {
	switch s {
	case StateCorrecting:
		return "correcting"
	case StateExtracting:
		return "extracting"
	case StateSynthesizing:
		return "synthesizing"
	case StateNormalizing:
		return "normalizing"
	case StateAssembling:
		return "assembling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateFallbackAssembling:
		return "fallback_assembling"
	default:
		return "unknown"
	}
}

// Observer receives timing for every model call. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveStage(noteType, stage string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, string, time.Duration, error) {}

// Input is one recording to summarize.
type Input struct {
	Filename   string
	Transcript note.Transcript
	Timestamps bool
	Recorded   time.Time
}

// Outcome is the result of a run. Note is never nil: when summarization
// failed it holds the fallback document and Failure holds the cause.
type Outcome struct {
	Note      *note.Note
	State     State
	Trace     []State
	Failure   error
	Corrected string
	Sections  map[string]outline.Section
}

// Fallback reports whether the fallback document was produced.
func (o Outcome) Fallback() bool {
	return o.Failure != nil
}

// Pipeline runs the summarization stages for one note type at a time.
type Pipeline struct {
	completer   Completer
	logger      logging.Logger
	observer    Observer
	concurrency int
	callTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver sets the stage observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithConcurrency bounds how many stages call the model at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithCallTimeout bounds every model call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.callTimeout = d }
}

// New creates a pipeline around a language-model collaborator.
func New(c Completer, opts ...Option) *Pipeline {
	p := &Pipeline{
		completer:   c,
		logger:      logging.Nop(),
		observer:    nopObserver{},
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency <= 0 {
		p.concurrency = 1
	}
	return p
}

// run holds the state of one Run call; the Pipeline itself stays immutable.
type run struct {
	*Pipeline
	cfg       *notetype.Config
	in        Input
	logger    logging.Logger
	extractor *Extractor
	trace     []State
}

func (r *run) enter(s State) {
	r.trace = append(r.trace, s)
	r.logger.Debug("pipeline state", logging.String("state", s.String()))
}

// Run summarizes in according to cfg. It never returns an error: any stage
// failure yields the fallback note, with the raw transcript kept intact.
func (p *Pipeline) Run(ctx context.Context, cfg *notetype.Config, in Input) Outcome {
	r := &run{Pipeline: p, cfg: cfg, in: in}
	r.logger = p.logger.With(logging.String("type", cfg.Name), logging.String("file", in.Filename))

	r.enter(StateCorrecting)
	corrected := correct.Correct(in.Transcript.Text, cfg.Domains)
	if n := correct.Count(in.Transcript.Text, cfg.Domains); n > 0 {
		r.logger.Info("corrected domain terms", logging.Int("count", n))
	}

	results, err := r.extract(ctx, corrected)
	if err == nil && cfg.HasOverview() {
		err = r.synthesize(ctx, results)
	}
	if err != nil {
		return r.fallback(err, corrected)
	}

	r.enter(StateNormalizing)
	sections := make(map[string]outline.Section, len(results))
	for id, res := range results {
		sections[id] = outline.Normalize(res.Text)
	}

	r.enter(StateAssembling)
	blocks := make([]note.Block, 0, len(cfg.Sections))
	for _, sec := range cfg.Sections {
		blk := note.Block{Heading: sec.Heading}
		if sec.ID != "" {
			blk.Body = sections[sec.ID]
		}
		blocks = append(blocks, blk)
	}
	n := note.Assemble(r.noteInput(blocks))

	r.enter(StateDone)
	return Outcome{Note: n, State: StateDone, Trace: r.trace, Corrected: corrected, Sections: sections}
}

func (r *run) extract(ctx context.Context, transcript string) (map[string]Result, error) {
	r.enter(StateExtracting)

	ex, err := NewExtractor(r.completer, r.cfg)
	if err != nil {
		return nil, err
	}
	r.extractor = ex

	out := make([]Result, len(r.cfg.Stages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, stage := range r.cfg.Stages {
		g.Go(func() error {
			res, err := r.timed(stage.ID, func() (Result, error) {
				cctx, cancel := r.callContext(gctx)
				defer cancel()
				return ex.Extract(cctx, stage, transcript)
			})
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(out)+1)
	for _, res := range out {
		results[res.StageID] = res
	}
	return results, nil
}

func (r *run) synthesize(ctx context.Context, results map[string]Result) error {
	r.enter(StateSynthesizing)

	res, err := r.timed(notetype.OverviewStageID, func() (Result, error) {
		cctx, cancel := r.callContext(ctx)
		defer cancel()
		return r.extractor.Synthesize(cctx, results)
	})
	if err != nil {
		return err
	}
	results[res.StageID] = res
	return nil
}

func (r *run) timed(stage string, call func() (Result, error)) (Result, error) {
	start := time.Now()
	res, err := call()
	elapsed := time.Since(start)

	r.observer.ObserveStage(r.cfg.Name, stage, elapsed, err)
	if err != nil {
		r.logger.Error("stage failed", err, logging.String("stage", stage), logging.Duration("elapsed", elapsed))
	} else {
		r.logger.Debug("stage complete", logging.String("stage", stage), logging.Duration("elapsed", elapsed))
	}
	return res, err
}

func (r *run) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.callTimeout)
}

func (r *run) fallback(cause error, corrected string) Outcome {
	r.enter(StateFailed)
	r.logger.Error("summarization failed, using fallback note", cause)

	r.enter(StateFallbackAssembling)
	n := note.Fallback(r.noteInput(nil), cause.Error())

	r.enter(StateDone)
	return Outcome{
		Note:      n,
		State:     StateDone,
		Trace:     r.trace,
		Failure:   fmt.Errorf("summarize %s: %w", r.in.Filename, cause),
		Corrected: corrected,
	}
}

func (r *run) noteInput(blocks []note.Block) note.Input {
	return note.Input{
		Filename:   r.in.Filename,
		Tag:        r.cfg.Tag,
		Recorded:   r.in.Recorded,
		Blocks:     blocks,
		Transcript: r.in.Transcript.Render(r.in.Timestamps),
	}
}
