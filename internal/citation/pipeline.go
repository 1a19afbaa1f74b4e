package citation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// A citation group is '[' followed by one or more of 0-9, ',' or ' ', then ']'.

// groupEnd reports whether a citation group starts at s[i] and, if so, the
// index just past its closing bracket.
func groupEnd(s string, i int) (int, bool) {
	if i >= len(s) || s[i] != '[' {
		return 0, false
	}
	j := i + 1
	for j < len(s) && isGroupByte(s[j]) {
		j++
	}
	if j == i+1 || j >= len(s) || s[j] != ']' {
		return 0, false
	}
	return j + 1, true
}

func isGroupByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == ',' || b == ' '
}

func isTrailingPunct(b byte) bool {
	switch b {
	case '.', ',', ';', ':', '!':
		return true
	}
	return false
}

// runEnd returns the end of the run of directly adjacent groups starting at i.
func runEnd(s string, i int) (int, bool) {
	end, ok := groupEnd(s, i)
	if !ok {
		return 0, false
	}
	for {
		next, ok := groupEnd(s, end)
		if !ok {
			return end, true
		}
		end = next
	}
}

// Consolidate merges adjacent bracket groups by replacing every ']', optional
// whitespace, '[' boundary with ", ": "[1][2]" and "[1] [2]" become "[1, 2]".
func Consolidate(text string) string {
	if !strings.Contains(text, "]") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] != ']' {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i + 1
		for j < len(text) {
			r, size := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsSpace(r) {
				break
			}
			j += size
		}
		if j < len(text) && text[j] == '[' {
			b.WriteString(", ")
			i = j + 1
			continue
		}
		b.WriteByte(']')
		i++
	}
	return b.String()
}

// MovePunctuation moves trailing punctuation in front of the citation run it
// follows: "word[1]." becomes "word.[1]". It makes a single pass and does not
// re-consolidate groups that end up adjacent.
func MovePunctuation(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		end, ok := runEnd(text, i)
		if !ok {
			b.WriteByte(text[i])
			i++
			continue
		}
		p := end
		for p < len(text) && isTrailingPunct(text[p]) {
			p++
		}
		if p > end {
			b.WriteString(text[end:p])
		}
		b.WriteString(text[i:end])
		i = p
	}
	return b.String()
}

// Part is a span of processed text: plain text or one citation group.
type Part struct {
	Citation bool
	Text     string
}

// Split partitions text into plain and citation parts, left to right.
// Empty plain spans are omitted.
func Split(text string) []Part {
	var parts []Part
	start := 0
	for i := 0; i < len(text); {
		end, ok := groupEnd(text, i)
		if !ok {
			i++
			continue
		}
		if i > start {
			parts = append(parts, Part{Text: text[start:i]})
		}
		parts = append(parts, Part{Citation: true, Text: text[i:end]})
		i = end
		start = end
	}
	if start < len(text) {
		parts = append(parts, Part{Text: text[start:]})
	}
	return parts
}

// Markers returns the numbers written inside a citation group, in order.
// Numbers too large to represent are skipped.
func Markers(group string) []int {
	var out []int
	n, inNum, overflow := 0, false, false
	flush := func() {
		if inNum && !overflow {
			out = append(out, n)
		}
		n, inNum, overflow = 0, false, false
	}
	for i := 0; i < len(group); i++ {
		c := group[i]
		if c < '0' || c > '9' {
			flush()
			continue
		}
		inNum = true
		if n > (maxMarker-int(c-'0'))/10 {
			overflow = true
			continue
		}
		n = n*10 + int(c-'0')
	}
	flush()
	return out
}

const maxMarker = 1<<31 - 1
