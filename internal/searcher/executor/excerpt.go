package executor

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/index"
)

type excerpter struct {
	max       int
	width     int
	highlight bool
	pre       string
	post      string
	ellipsis  string
}

// excerpts cuts up to max windows from text, one per span in order.
func (x excerpter) excerpts(text string, spans []index.Span) []string {
	n := min(len(spans), x.max)
	out := make([]string, 0, n)
	for _, sp := range spans[:n] {
		out = append(out, x.excerpt(text, sp))
	}
	return out
}

// excerpt returns width runes either side of sp, clamped to the text and
// cut on rune boundaries.
func (x excerpter) excerpt(text string, sp index.Span) string {
	if sp.Start < 0 || sp.End > len(text) || sp.Start > sp.End {
		return ""
	}
	start := sp.Start
	for i := 0; i < x.width && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:start])
		start -= size
	}
	end := sp.End
	for i := 0; i < x.width && end < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
	}

	var b strings.Builder
	b.Grow(end - start + len(x.pre) + len(x.post) + 2*len(x.ellipsis))
	if start > 0 {
		b.WriteString(x.ellipsis)
	}
	b.WriteString(text[start:sp.Start])
	if x.highlight {
		b.WriteString(x.pre)
	}
	b.WriteString(text[sp.Start:sp.End])
	if x.highlight {
		b.WriteString(x.post)
	}
	b.WriteString(text[sp.End:end])
	if end < len(text) {
		b.WriteString(x.ellipsis)
	}
	return b.String()
}
