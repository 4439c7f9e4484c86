package note

import (
	"strings"
	"testing"
	"time"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/outline"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"dentist_reminder.mp3", "Dentist Reminder"},
		{"/inbox/meeting/team-sync--notes.m4a", "Team Sync Notes"},
		{"New Recording 12.m4a", "12"},
		{"Recording.m4a", DefaultTitle},
		{"VOICE_knee shield.wav", "Knee Shield"},
		{"Audio-half butterfly.ogg", "Half Butterfly"},
		{"Voicemail from Bob.m4a", "Voicemail From Bob"},
		{"___.mp3", DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := Title(tt.filename); got != tt.want {
				t.Errorf("Title(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestPageName(t *testing.T) {
	date := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		filename string
		want     string
	}{
		{"dentist_reminder.mp3", "2026-03-14-Dentist-Reminder"},
		{"what's next? (v2).m4a", "2026-03-14-Whats-Next-v2"},
		{"Recording.m4a", "2026-03-14-Voice-Note"},
	}

	for _, tt := range tests {
		if got := PageName(tt.filename, date); got != tt.want {
			t.Errorf("PageName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestRender_Layout(t *testing.T) {
	n := Assemble(Input{
		Filename: "team_sync.m4a",
		Tag:      "meeting",
		Recorded: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Blocks: []Block{
			{Heading: "## Overview", Body: outline.Section{Lines: []string{"- Short sync"}}},
			{Heading: "## Techniques"},
			{Heading: "### Action Items", Body: outline.Section{Lines: []string{"- Book room", "\t- Before Friday"}}},
		},
		Transcript: "Remember to book the room",
	})

	doc := n.Render()

	want := strings.Join([]string{
		"# 🎙️ Team Sync",
		"",
		"tags:: #voice-note #meeting #inbox",
		"recorded:: [[2026-01-02]]",
		"processed:: false",
		"",
		"---",
		"",
		"## Overview",
		"- Short sync",
		"",
		"## Techniques",
		"",
		"### Action Items",
		"- Book room",
		"\t- Before Friday",
		"",
		"---",
		"",
		"## 📄 Raw Transcript",
		"",
		"<details>",
		"<summary>Click to expand full transcript</summary>",
		"",
		"Remember to book the room",
		"",
		"</details>",
		"",
	}, "\n")

	if doc != want {
		t.Errorf("Render() mismatch\ngot:\n%s\nwant:\n%s", doc, want)
	}
}

func TestRender_MetadataDirectlyUnderTitle(t *testing.T) {
	doc := Assemble(Input{Filename: "x.mp3", Tag: "bjj"}).Render()

	lines := strings.Split(doc, "\n")
	sep := -1
	for i, l := range lines {
		if l == Separator {
			sep = i
			break
		}
	}
	if sep < 0 {
		t.Fatal("no separator in document")
	}

	var meta int
	for _, l := range lines[1:sep] {
		if strings.Contains(l, ":: ") {
			meta++
		}
	}
	if meta != 3 {
		t.Errorf("expected 3 metadata lines before first separator, got %d", meta)
	}
}

func TestRender_TranscriptIsLast(t *testing.T) {
	doc := Assemble(Input{Filename: "x.mp3", Tag: "bjj", Transcript: "raw words"}).Render()

	if !strings.HasSuffix(strings.TrimSpace(doc), "</details>") {
		t.Error("transcript disclosure block must be last")
	}
	if strings.Index(doc, TranscriptHead) < strings.LastIndex(doc, Separator) {
		t.Error("transcript heading should follow the last separator")
	}
}

func TestFallback_KeepsTranscript(t *testing.T) {
	transcript := "line one\nline two with **markup**"

	n := Fallback(Input{
		Filename:   "Recording 3.m4a",
		Tag:        "bjj",
		Blocks:     []Block{{Heading: "## Ignored"}},
		Transcript: transcript,
	}, "stage \"drills\": timeout\nstack")

	if !n.Fallback {
		t.Error("Fallback flag not set")
	}
	if len(n.Blocks) != 1 || n.Blocks[0].Heading != FallbackHeading {
		t.Fatalf("unexpected blocks: %+v", n.Blocks)
	}

	doc := n.Render()
	if !strings.Contains(doc, "\n"+transcript+"\n") {
		t.Error("fallback note lost the transcript")
	}
	if strings.Contains(doc, "## Ignored") {
		t.Error("fallback note should not render configured sections")
	}
	if !strings.Contains(doc, "Reason: stage \"drills\": timeout") || strings.Contains(doc, "stack") {
		t.Errorf("reason should be the first line only:\n%s", doc)
	}
	if !strings.Contains(doc, "processed:: false") {
		t.Error("fallback note should keep metadata")
	}
}

func TestTags_DoNotDuplicate(t *testing.T) {
	got := hashTags(tags("inbox"))
	if got != "#voice-note #inbox" {
		t.Errorf("tags = %q", got)
	}
}

func TestTranscript_Render(t *testing.T) {
	tr := Transcript{
		Text: " full text ",
		Segments: []Segment{
			{Start: 0, End: 4.2, Text: " Hello there "},
			{Start: 65.9, End: 70, Text: "next bit"},
			{Start: 3725, End: 3730, Text: "late"},
			{Start: 80, End: 81, Text: "  "},
		},
	}

	if got := tr.Render(false); got != " full text " {
		t.Errorf("Render(false) = %q", got)
	}

	want := "(00:00) Hello there\n(01:05) next bit\n(62:05) late"
	if got := tr.Render(true); got != want {
		t.Errorf("Render(true) = %q, want %q", got, want)
	}

	plain := Transcript{Text: "only text"}
	if got := plain.Render(true); got != "only text" {
		t.Errorf("Render(true) without segments = %q", got)
	}
}

func TestTranscript_RenderKeepsTextVerbatim(t *testing.T) {
	text := "  Okay so.\n\nFirst   point,  then\tthe second.  "
	tr := Transcript{Text: text + "\n"}

	if got := tr.Render(false); got != text {
		t.Errorf("Render(false) = %q, want %q", got, text)
	}

	doc := Assemble(Input{Filename: "x.mp3", Tag: "meeting", Transcript: tr.Render(false)}).Render()
	if !strings.Contains(doc, "\n"+text+"\n\n</details>") {
		t.Errorf("transcript not embedded verbatim:\n%s", doc)
	}
}
