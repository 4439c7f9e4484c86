package summarize

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/notetype"
)

// Result is the raw text a stage produced, before normalization.
type Result struct {
	StageID string
	Text    string
}

// promptData is what stage templates see.
type promptData struct {
	Type       string
	Domains    string
	Transcript string
}

// overviewData is what the overview template sees.
type overviewData struct {
	Type     string
	Domains  string
	Excerpts []Excerpt
}

// Excerpt is the opening of one stage result, offered to the overview.
type Excerpt struct {
	StageID string
	Heading string
	Text    string
}

// Extractor runs single stages of one note type.
type Extractor struct {
	completer Completer
	cfg       *notetype.Config
	domains   string
	stages    map[string]*template.Template
	overview  *template.Template
}

// NewExtractor parses every prompt template of cfg up front so that a broken
// template is reported before any model call is made.
func NewExtractor(c Completer, cfg *notetype.Config) (*Extractor, error) {
	e := &Extractor{
		completer: c,
		cfg:       cfg,
		domains:   FormatDomains(cfg.Domains),
		stages:    make(map[string]*template.Template, len(cfg.Stages)),
	}

	for _, s := range cfg.Stages {
		tmpl, err := template.New(s.ID).Parse(s.Prompt)
		if err != nil {
			return nil, fmt.Errorf("parse prompt for stage %q: %w", s.ID, err)
		}
		e.stages[s.ID] = tmpl
	}

	if cfg.Overview != nil {
		tmpl, err := template.New(notetype.OverviewStageID).Parse(cfg.Overview.Prompt)
		if err != nil {
			return nil, fmt.Errorf("parse overview prompt: %w", err)
		}
		e.overview = tmpl
	}

	return e, nil
}

// Extract runs one stage against the transcript. The model output is
// returned verbatim; empty output is an error.
func (e *Extractor) Extract(ctx context.Context, stage notetype.Stage, transcript string) (Result, error) {
	tmpl, ok := e.stages[stage.ID]
	if !ok {
		return Result{}, &StageError{Stage: stage.ID, Err: fmt.Errorf("unknown stage")}
	}

	var prompt strings.Builder
	err := tmpl.Execute(&prompt, promptData{
		Type:       e.cfg.Name,
		Domains:    e.domains,
		Transcript: Truncate(transcript, stage.TranscriptChars),
	})
	if err != nil {
		return Result{}, &StageError{Stage: stage.ID, Err: fmt.Errorf("render prompt: %w", err)}
	}

	text, err := e.complete(ctx, prompt.String(), stage.MaxTokens)
	if err != nil {
		return Result{}, &StageError{Stage: stage.ID, Err: err}
	}
	return Result{StageID: stage.ID, Text: text}, nil
}

// Synthesize runs the overview call over the openings of the configured
// source stages.
func (e *Extractor) Synthesize(ctx context.Context, results map[string]Result) (Result, error) {
	if e.overview == nil {
		return Result{}, &StageError{Stage: notetype.OverviewStageID, Err: fmt.Errorf("no overview configured")}
	}
	ov := e.cfg.Overview

	excerpts := make([]Excerpt, 0, len(ov.Sources))
	for _, id := range ov.Sources {
		r, ok := results[id]
		if !ok {
			return Result{}, &StageError{Stage: notetype.OverviewStageID, Err: fmt.Errorf("missing result for %q", id)}
		}
		excerpts = append(excerpts, Excerpt{
			StageID: id,
			Heading: Humanize(id),
			Text:    Truncate(strings.TrimSpace(r.Text), ov.ExcerptChars),
		})
	}

	var prompt strings.Builder
	err := e.overview.Execute(&prompt, overviewData{Type: e.cfg.Name, Domains: e.domains, Excerpts: excerpts})
	if err != nil {
		return Result{}, &StageError{Stage: notetype.OverviewStageID, Err: fmt.Errorf("render prompt: %w", err)}
	}

	text, err := e.complete(ctx, prompt.String(), ov.MaxTokens)
	if err != nil {
		return Result{}, &StageError{Stage: notetype.OverviewStageID, Err: err}
	}
	return Result{StageID: notetype.OverviewStageID, Text: text}, nil
}

func (e *Extractor) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	text, err := e.completer.Complete(ctx, Request{
		System:      e.cfg.SystemPrompt,
		Prompt:      prompt,
		Temperature: e.cfg.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Truncate returns the first limit runes of s. A limit of zero or less
// keeps s whole.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// FormatDomains renders the dictionary as one "category: term, term" line
// per category, for embedding in prompts.
func FormatDomains(d notetype.Dictionary) string {
	lines := make([]string, 0, len(d))
	for _, c := range d {
		if len(c.Terms) == 0 {
			continue
		}
		lines = append(lines, Humanize(c.Name)+": "+strings.Join(c.Terms, ", "))
	}
	return strings.Join(lines, "\n")
}

// Humanize turns an identifier like "primary_sequence" into "Primary Sequence".
func Humanize(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
