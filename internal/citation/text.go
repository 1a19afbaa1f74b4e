package citation

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Text flattens segments, formatting citations with marker.
func Text(segments []Segment, marker func(Segment) string) string {
	var b strings.Builder
	for _, s := range segments {
		if s.Kind == KindCitation {
			b.WriteString(marker(s))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// Bracketed formats a citation as "[n]".
func Bracketed(s Segment) string {
	return fmt.Sprintf("[%d]", s.Index)
}

var citationStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#38bdf8")).
	Bold(true)

// Terminal flattens segments for a terminal. With color set, citation
// markers are styled; otherwise they are bracketed.
func Terminal(segments []Segment, color bool) string {
	if !color {
		return Text(segments, Bracketed)
	}
	return Text(segments, func(s Segment) string {
		return citationStyle.Render(Bracketed(s))
	})
}
