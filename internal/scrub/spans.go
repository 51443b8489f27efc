package scrub

import (
	"sort"
	"strings"
)

// masked is the byte range of a replacement inserted by an earlier pass.
// Later passes never rewrite inside one, whatever it contains.
type masked struct {
	start, end int
}

// replacement swaps text[start:end] for mask.
type replacement struct {
	start, end int
	mask       string
}

// overlaps reports whether [start, end) intersects any of the sorted spans.
func overlaps(spans []masked, start, end int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > start })
	return i < len(spans) && spans[i].start < end
}

// apply rewrites text with repl, which must be sorted, non-overlapping and
// clear of spans. It returns the new text and the spans shifted to their new
// offsets, merged with the ranges of the inserted masks.
func apply(text string, spans []masked, repl []replacement) (string, []masked) {
	if len(repl) == 0 {
		return text, spans
	}

	var b strings.Builder
	b.Grow(len(text))
	out := make([]masked, 0, len(spans)+len(repl))
	last, shift, si := 0, 0, 0
	for _, r := range repl {
		for ; si < len(spans) && spans[si].start < r.start; si++ {
			out = append(out, masked{spans[si].start + shift, spans[si].end + shift})
		}
		b.WriteString(text[last:r.start])
		start := b.Len()
		b.WriteString(r.mask)
		out = append(out, masked{start, b.Len()})
		shift += len(r.mask) - (r.end - r.start)
		last = r.end
	}
	for ; si < len(spans); si++ {
		out = append(out, masked{spans[si].start + shift, spans[si].end + shift})
	}
	b.WriteString(text[last:])
	return b.String(), out
}

// runeOffsets maps each rune index of text to its byte offset, with one
// trailing entry for len(text). Invalid bytes count as one rune each, the
// same way []rune(text) decodes them.
func runeOffsets(text string) []int {
	offs := make([]int, 0, len(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	return append(offs, len(text))
}
