package insight

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DefaultColors is used when the model does not return a usable palette.
var DefaultColors = []string{"#1e3a5f", "#2d5a7c", "#3d7a9c", "#4d9abc"}

var hexColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Output is the structured result the model is asked to return.
type Output struct {
	SummaryText     string   `json:"summary_text"`
	Questions       []string `json:"questions"`
	SentimentColors []string `json:"sentiment_colors"`
}

// ParseOutput extracts the JSON object from raw model text. Markdown code
// fences and any prose around the outermost braces are discarded.
func ParseOutput(raw string) (*Output, error) {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)

	first := strings.Index(s, "{")
	last := strings.LastIndex(s, "}")
	if first != -1 && last > first {
		s = s[first : last+1]
	}

	var out Output
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("insight: parse model output: %w", err)
	}
	if out.Questions == nil {
		out.Questions = []string{}
	}
	out.SentimentColors = palette(out.SentimentColors)
	return &out, nil
}

// palette returns colors when it holds exactly four hex codes, else the default.
func palette(colors []string) []string {
	if len(colors) != 4 {
		return append([]string(nil), DefaultColors...)
	}
	for _, c := range colors {
		if !hexColorRe.MatchString(c) {
			return append([]string(nil), DefaultColors...)
		}
	}
	return colors
}
