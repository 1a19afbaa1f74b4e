// Package citation turns generated prose with bracketed note references into
// display segments.
//
// Markers such as "[2]" or "[1, 3]" refer, 1-based, to positions in the batch
// of notes the text was generated from. Rendering consolidates adjacent
// markers, moves trailing punctuation in front of them, resolves each marker
// to note ids and renumbers the surviving citations 1, 2, 3... in reading
// order. Markers that resolve to no note are dropped without a trace.
package citation

import "github.com/starford/maelstrom/internal/models"

// Kind discriminates segments.
type Kind string

const (
	KindText     Kind = "text"
	KindCitation Kind = "citation"
)

// Segment is one unit of rendered output.
type Segment struct {
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Index   int      `json:"index,omitempty"`
	NoteIDs []string `json:"note_ids,omitempty"`

	activate func([]string)
}

// Activate invokes the render callback with the segment's note ids.
// It does nothing for text segments.
func (s Segment) Activate() {
	if s.Kind != KindCitation || s.activate == nil {
		return
	}
	s.activate(append([]string(nil), s.NoteIDs...))
}

// Render runs Consolidate, MovePunctuation and Split over text and resolves
// every citation against noteIDs. activate may be nil.
func Render(text string, noteIDs []string, activate func(noteIDs []string)) []Segment {
	parts := Split(MovePunctuation(Consolidate(text)))

	segments := make([]Segment, 0, len(parts))
	next := 1
	for _, p := range parts {
		if !p.Citation {
			segments = appendText(segments, p.Text)
			continue
		}
		ids := resolve(p.Text, noteIDs)
		if len(ids) == 0 {
			continue
		}
		segments = append(segments, Segment{
			Kind:     KindCitation,
			Index:    next,
			NoteIDs:  ids,
			activate: activate,
		})
		next++
	}
	return segments
}

// appendText adds text, merging it into a preceding text segment.
func appendText(segments []Segment, text string) []Segment {
	if text == "" {
		return segments
	}
	if n := len(segments); n > 0 && segments[n-1].Kind == KindText {
		segments[n-1].Text += text
		return segments
	}
	return append(segments, Segment{Kind: KindText, Text: text})
}

func resolve(group string, noteIDs []string) []string {
	var ids []string
	for _, m := range Markers(group) {
		i := m - 1
		if i < 0 || i >= len(noteIDs) || noteIDs[i] == "" {
			continue
		}
		ids = append(ids, noteIDs[i])
	}
	return ids
}

// Insight is a rendered undercurrent.
type Insight struct {
	Summary   []Segment   `json:"summary"`
	Questions [][]Segment `json:"questions"`
}

// RenderInsight renders the summary and each question of u against the notes
// it was generated from. Each text is numbered independently.
func RenderInsight(u models.Undercurrent, activate func(noteIDs []string)) Insight {
	out := Insight{
		Summary:   Render(u.SummaryText, u.NotesIncluded, activate),
		Questions: make([][]Segment, 0, len(u.Questions)),
	}
	for _, q := range u.Questions {
		out.Questions = append(out.Questions, Render(q, u.NotesIncluded, activate))
	}
	return out
}

// Find returns the citation with display index n.
func Find(segments []Segment, n int) (Segment, bool) {
	for _, s := range segments {
		if s.Kind == KindCitation && s.Index == n {
			return s, true
		}
	}
	return Segment{}, false
}
