package note

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/TechnicallyShaun/nota-scribe/internal/voice/outline"
)

// Document constants.
const (
	DefaultTitle     = "Voice Note"
	VoiceNoteTag     = "voice-note"
	InboxTag         = "inbox"
	TitleIcon        = "🎙️"
	Separator        = "---"
	TranscriptHead   = "## 📄 Raw Transcript"
	TranscriptToggle = "Click to expand full transcript"
	FallbackHeading  = "## Summary"
	dateLayout       = "2006-01-02"
)

// Recording-device prefixes stripped from filenames, longest first.
var devicePrefixes = []string{"new recording", "recording", "voice", "audio"}

var (
	separatorRun   = regexp.MustCompile(`[_\-\s]+`)
	unsafePageChar = regexp.MustCompile(`[^\p{L}\p{N}_\-#]`)
	dashRun        = regexp.MustCompile(`-{2,}`)
)

// Block is one configured section: a heading and its normalized body.
// A block with an empty body renders as a bare heading.
type Block struct {
	Heading string
	Body    outline.Section
}

// Input is everything the assembler needs for one recording.
type Input struct {
	Filename   string
	Tag        string
	Recorded   time.Time
	Blocks     []Block
	Transcript string
}

// Note is an assembled document.
type Note struct {
	Title      string
	Tags       []string
	Recorded   time.Time
	Processed  bool
	Blocks     []Block
	Transcript string
	Fallback   bool
}

// Assemble builds the structured note.
func Assemble(in Input) *Note {
	return &Note{
		Title:      Title(in.Filename),
		Tags:       tags(in.Tag),
		Recorded:   in.Recorded,
		Blocks:     in.Blocks,
		Transcript: in.Transcript,
	}
}

// Fallback builds the minimal note used when summarization failed. Any
// blocks on the input are ignored; the transcript is kept verbatim.
func Fallback(in Input, reason string) *Note {
	lines := []string{"- AI summary unavailable; see raw transcript below"}
	if reason = strings.TrimSpace(firstLine(reason)); reason != "" {
		lines = append(lines, "\t- Reason: "+reason)
	}

	return &Note{
		Title:      Title(in.Filename),
		Tags:       tags(in.Tag),
		Recorded:   in.Recorded,
		Blocks:     []Block{{Heading: FallbackHeading, Body: outline.Section{Lines: lines}}},
		Transcript: in.Transcript,
		Fallback:   true,
	}
}

// Render produces the markdown document.
func (n *Note) Render() string {
	var b strings.Builder

	b.WriteString("# " + TitleIcon + " " + n.Title + "\n")
	b.WriteString("\n")
	b.WriteString("tags:: " + hashTags(n.Tags) + "\n")
	b.WriteString("recorded:: [[" + n.Recorded.Format(dateLayout) + "]]\n")
	if n.Processed {
		b.WriteString("processed:: true\n")
	} else {
		b.WriteString("processed:: false\n")
	}
	b.WriteString("\n" + Separator + "\n")

	for _, blk := range n.Blocks {
		b.WriteString("\n" + blk.Heading + "\n")
		if !blk.Body.Empty() {
			b.WriteString(blk.Body.String() + "\n")
		}
	}

	b.WriteString("\n" + Separator + "\n")
	b.WriteString("\n" + TranscriptHead + "\n")
	b.WriteString("\n<details>\n")
	b.WriteString("<summary>" + TranscriptToggle + "</summary>\n")
	b.WriteString("\n" + n.Transcript + "\n")
	b.WriteString("\n</details>\n")

	return b.String()
}

// Title derives a human readable title from a recording filename.
func Title(filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	stem = stripDevicePrefix(stem)
	stem = strings.TrimSpace(separatorRun.ReplaceAllString(stem, " "))
	if stem == "" {
		return DefaultTitle
	}

	words := strings.Fields(stem)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// PageName returns the date-prefixed, sanitized page name (without
// extension) for a recording.
func PageName(filename string, date time.Time) string {
	name := separatorRun.ReplaceAllString(Title(filename), "-")
	name = unsafePageChar.ReplaceAllString(name, "")
	name = strings.Trim(dashRun.ReplaceAllString(name, "-"), "-")
	if name == "" {
		name = strings.ReplaceAll(DefaultTitle, " ", "-")
	}
	return date.Format(dateLayout) + "-" + name
}

func stripDevicePrefix(stem string) string {
	lower := strings.ToLower(stem)
	for _, p := range devicePrefixes {
		if !strings.HasPrefix(lower, p) {
			continue
		}
		rest := stem[len(p):]
		// Only strip whole words: "Voicemail" keeps its name.
		if rest == "" || strings.ContainsRune("_- \t", rune(rest[0])) || unicode.IsDigit(rune(rest[0])) {
			return rest
		}
	}
	return stem
}

func tags(typeTag string) []string {
	out := []string{VoiceNoteTag}
	if t := strings.TrimSpace(typeTag); t != "" && t != VoiceNoteTag && t != InboxTag {
		out = append(out, t)
	}
	return append(out, InboxTag)
}

func hashTags(tags []string) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = "#" + t
	}
	return strings.Join(parts, " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
