// Package textutil holds the codepoint-level text helpers shared by the
// matcher, the proper-noun scanner and the resolver. All offsets handed around
// the recognizer are codepoint offsets, never byte offsets.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text is an immutable document addressed by codepoint offsets.
type Text struct {
	s string
	r []rune
}

// NewText wraps s for codepoint slicing.
func NewText(s string) *Text {
	return &Text{s: s, r: []rune(s)}
}

// String returns the whole document.
func (t *Text) String() string { return t.s }

// Len returns the document length in codepoints.
func (t *Text) Len() int { return len(t.r) }

// Slice returns text[start:end], clamped to the document.
func (t *Text) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(t.r) {
		end = len(t.r)
	}
	if start >= end {
		return ""
	}
	return string(t.r[start:end])
}

// At returns the codepoint at i, or 0 when i is out of range.
func (t *Text) At(i int) rune {
	if i < 0 || i >= len(t.r) {
		return 0
	}
	return t.r[i]
}

// Runes exposes the underlying codepoints. Callers must not modify them.
func (t *Text) Runes() []rune { return t.r }

// Chained transformers keep state, so each call builds its own.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// RemoveAccents strips combining marks from every codepoint whose
// decomposition folds back to exactly one codepoint. Other codepoints are kept
// as-is, so the result always has the same codepoint length as s and offsets
// computed on it are valid in the original.
func RemoveAccents(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	t := stripMarks()
	for _, r := range s {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		folded, _, err := transform.String(t, string(r))
		if err != nil || len([]rune(folded)) != 1 {
			b.WriteRune(r)
			continue
		}
		b.WriteString(folded)
	}
	return b.String()
}

// FoldName normalises a name for index lookups: accents removed, lower case.
func FoldName(s string) string {
	return strings.ToLower(RemoveAccents(s))
}

var titles = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "miss": {}, "dr": {}, "prof": {}, "sir": {},
	"lord": {}, "lady": {}, "saint": {}, "st": {}, "king": {}, "queen": {},
	"pope": {}, "president": {}, "general": {}, "captain": {}, "judge": {},
	"ing": {}, "mgr": {}, "mudr": {}, "judr": {}, "phdr": {}, "rndr": {},
	"doc": {}, "pan": {}, "paní": {}, "slečna": {},
}

// IsTitle reports whether word (with or without a trailing dot) is an
// honorific that precedes a name rather than being part of it.
func IsTitle(word string) bool {
	_, ok := titles[strings.ToLower(strings.TrimSuffix(word, "."))]
	return ok
}

// ContainsFolded reports whether needle occurs in haystack ignoring case and accents.
func ContainsFolded(haystack, needle string) bool {
	return strings.Contains(FoldName(haystack), FoldName(needle))
}

var controlChars = regexp.MustCompile("[;\x01-\x08\x0e-\x1f\x0c\x7f]")

// Sanitize replaces semicolons and control characters with spaces so they
// cannot break the tab-separated output. Length in codepoints is preserved.
func Sanitize(s string) string {
	return controlChars.ReplaceAllString(s, " ")
}

// ParagraphStarts returns the offset of every paragraph start: 0, plus the end
// of every run of two or more identical line breaks (\n, \r\n or \r).
func ParagraphStarts(t *Text) []int {
	starts := []int{0}
	r := t.r
	i := 0
	for i < len(r) {
		brk := lineBreakAt(r, i)
		if brk == 0 {
			i++
			continue
		}
		j := i + brk
		count := 1
		for j+brk <= len(r) && sameBreak(r, i, j, brk) {
			j += brk
			count++
		}
		if count >= 2 {
			starts = append(starts, j)
			i = j
			continue
		}
		i++
	}
	return starts
}

func lineBreakAt(r []rune, i int) int {
	switch r[i] {
	case '\n':
		return 1
	case '\r':
		if i+1 < len(r) && r[i+1] == '\n' {
			return 2
		}
		return 1
	}
	return 0
}

func sameBreak(r []rune, i, j, n int) bool {
	for k := 0; k < n; k++ {
		if r[i+k] != r[j+k] {
			return false
		}
	}
	return true
}

// RuneOffsets maps each rune-start byte offset of s, and len(s), to its
// codepoint offset. Use it to convert regexp match indexes.
func RuneOffsets(s string) []int {
	idx := make([]int, len(s)+1)
	n := 0
	for i := range s {
		idx[i] = n
		n++
	}
	idx[len(s)] = n
	return idx
}
