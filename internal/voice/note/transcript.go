// Package note holds the transcript and note documents produced for one
// recording, and renders them as outline markup.
package note

import (
	"fmt"
	"strings"
)

// Segment is one timed span of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the speech-to-text output for a recording. Segments may be
// empty when the collaborator only returned plain text.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
}

// Render returns the transcript text as received, minus trailing newlines.
// With timestamps enabled and segment data present, each segment is rendered
// on its own line as "(MM:SS) text".
func (t Transcript) Render(timestamps bool) string {
	if !timestamps || len(t.Segments) == 0 {
		return strings.TrimRight(t.Text, "\r\n")
	}

	lines := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("(%s) %s", Timestamp(seg.Start), text))
	}
	return strings.Join(lines, "\n")
}

// Timestamp formats seconds as MM:SS. Minutes are not wrapped at the hour.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
