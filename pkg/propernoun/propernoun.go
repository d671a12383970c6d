// Package propernoun finds runs of capitalised words that look like proper
// nouns. The resolver uses these spans to reject dictionary matches that only
// cover part of a longer name.
package propernoun

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

const word = `[A-Z][A-Za-z'\-]*`

// Runs never start right after a sentence break or a double space.
var blockedPrefixes = []string{". ", "? ", "! ", ": "}

// Scanner finds proper-noun spans of two or more capitalised words. The
// lowercase words in preps may appear between them ("Charles the Bald").
type Scanner struct {
	re *regexp.Regexp
}

// NewScanner compiles a scanner for the given prepositions.
func NewScanner(preps []string) *Scanner {
	var alt strings.Builder
	for _, p := range preps {
		alt.WriteString("| ")
		alt.WriteString(regexp.QuoteMeta(p))
	}
	return &Scanner{re: regexp.MustCompile(`^` + word + `(?: ` + word + alt.String() + `)* ` + word)}
}

// Find returns the spans, in codepoint offsets, of the proper nouns in text.
// Accents are removed before scanning. A run at offset 0 or one whose first
// word is a title is skipped.
func (s *Scanner) Find(text string) []mentions.Span {
	plain := textutil.RemoveAccents(text)
	runeAt := textutil.RuneOffsets(plain)

	var spans []mentions.Span
	for i := 0; i < len(plain); {
		c := plain[i]
		if c < 'A' || c > 'Z' || blocked(plain, i) {
			_, size := utf8.DecodeRuneInString(plain[i:])
			i += size
			continue
		}
		m := s.re.FindString(plain[i:])
		if m == "" {
			i++
			continue
		}
		first := strings.Fields(m)[0]
		if i != 0 && !textutil.IsTitle(first) {
			spans = append(spans, mentions.Span{Start: runeAt[i], End: runeAt[i+len(m)]})
		}
		i += len(m)
	}
	return spans
}

func blocked(s string, i int) bool {
	if i < 2 {
		return false
	}
	before := s[i-2 : i]
	for _, p := range blockedPrefixes {
		if before == p {
			return true
		}
	}
	return isSpace(before[0]) && isSpace(before[1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
