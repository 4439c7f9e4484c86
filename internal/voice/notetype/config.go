// Package notetype loads the per-type configuration (prompts, domain
// dictionary, section layout) that drives summarization of a voice note.
package notetype

import (
	"errors"
	"fmt"
	"strings"
)

// Default values applied to optional configuration fields.
const (
	DefaultTemperature    = 0.3
	DefaultStageMaxTokens = 600
	DefaultOverviewTokens = 400
	DefaultExcerptChars   = 300
	DefaultSystemPrompt   = "You are a precise note-taking assistant. Follow the output format exactly."
	OverviewStageID       = "overview"
)

// Config describes one note type.
type Config struct {
	Name         string     `json:"name"`
	Tag          string     `json:"tag,omitempty"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
	Temperature  float32    `json:"temperature,omitempty"`
	Domains      Dictionary `json:"domains,omitempty"`
	Stages       []Stage    `json:"stages"`
	Overview     *Overview  `json:"overview,omitempty"`
	Sections     []Section  `json:"sections"`
}

// Stage is a single extraction call. Prompt is a text/template rendered with
// the transcript excerpt and the domain dictionary.
type Stage struct {
	ID              string `json:"id"`
	Prompt          string `json:"prompt"`
	MaxTokens       int    `json:"max_tokens,omitempty"`
	TranscriptChars int    `json:"transcript_chars,omitempty"`
}

// Overview is the synthesis call run after every stage has completed.
type Overview struct {
	Prompt       string   `json:"prompt"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	ExcerptChars int      `json:"excerpt_chars,omitempty"`
	Sources      []string `json:"sources,omitempty"`
}

// Section places a stage result under a heading in the final note.
// A section without an ID renders as a bare heading.
type Section struct {
	ID      string `json:"id,omitempty"`
	Heading string `json:"heading"`
}

// Validation errors
var (
	ErrNameRequired    = errors.New("name is required")
	ErrNoStages        = errors.New("at least one stage is required")
	ErrEmptyPrompt     = errors.New("stage prompt is empty")
	ErrDuplicateStage  = errors.New("duplicate stage id")
	ErrUnknownSection  = errors.New("section references unknown stage")
	ErrHeadingRequired = errors.New("section heading is required")
)

// ApplyDefaults fills optional fields.
func (c *Config) ApplyDefaults() {
	if c.Tag == "" {
		c.Tag = c.Name
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	for i := range c.Stages {
		if c.Stages[i].MaxTokens == 0 {
			c.Stages[i].MaxTokens = DefaultStageMaxTokens
		}
	}
	if c.Overview != nil {
		if c.Overview.MaxTokens == 0 {
			c.Overview.MaxTokens = DefaultOverviewTokens
		}
		if c.Overview.ExcerptChars == 0 {
			c.Overview.ExcerptChars = DefaultExcerptChars
		}
		if len(c.Overview.Sources) == 0 {
			c.Overview.Sources = c.StageIDs()
		}
	}
}

// Validate checks that stages are well formed and that every section refers
// to a known stage (or to the overview).
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if len(c.Stages) == 0 {
		return ErrNoStages
	}

	known := make(map[string]bool, len(c.Stages)+1)
	for _, s := range c.Stages {
		if s.ID == OverviewStageID || known[s.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateStage, s.ID)
		}
		if strings.TrimSpace(s.Prompt) == "" {
			return fmt.Errorf("%w: %q", ErrEmptyPrompt, s.ID)
		}
		known[s.ID] = true
	}

	if c.Overview != nil {
		if strings.TrimSpace(c.Overview.Prompt) == "" {
			return fmt.Errorf("%w: %q", ErrEmptyPrompt, OverviewStageID)
		}
		for _, src := range c.Overview.Sources {
			if !known[src] {
				return fmt.Errorf("overview source %q: %w", src, ErrUnknownSection)
			}
		}
		known[OverviewStageID] = true
	}

	for _, sec := range c.Sections {
		if strings.TrimSpace(sec.Heading) == "" {
			return ErrHeadingRequired
		}
		if sec.ID != "" && !known[sec.ID] {
			return fmt.Errorf("%w: %q", ErrUnknownSection, sec.ID)
		}
	}
	return nil
}

// StageIDs returns the stage identifiers in execution order.
func (c *Config) StageIDs() []string {
	ids := make([]string, len(c.Stages))
	for i, s := range c.Stages {
		ids[i] = s.ID
	}
	return ids
}

// HasOverview reports whether the type defines a synthesis step.
func (c *Config) HasOverview() bool {
	return c.Overview != nil
}
