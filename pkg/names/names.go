// Package names recognises person-like names that the dictionary does not
// know. Its rows become name mentions in the resolver's names mode.
package names

import (
	"context"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/matcher"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/propernoun"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// Recognizer finds unknown names. records is the matcher output for the same
// text. Returned records carry no ids and use 0-based half-open offsets.
type Recognizer interface {
	Recognize(ctx context.Context, text string, records []matcher.Record) ([]matcher.Record, error)
}

// ProperNounRecognizer reports proper-noun runs that the matcher did not
// match exactly.
type ProperNounRecognizer struct {
	scanner *propernoun.Scanner
}

// NewProperNounRecognizer returns a recognizer backed by scanner.
func NewProperNounRecognizer(scanner *propernoun.Scanner) *ProperNounRecognizer {
	return &ProperNounRecognizer{scanner: scanner}
}

// Recognize implements Recognizer.
func (r *ProperNounRecognizer) Recognize(ctx context.Context, text string, records []matcher.Record) ([]matcher.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	known := make(map[mentions.Span]struct{}, len(records))
	for _, rec := range records {
		known[mentions.Span{Start: rec.Start, End: rec.End}] = struct{}{}
	}

	doc := textutil.NewText(text)
	var out []matcher.Record
	for _, span := range r.scanner.Find(text) {
		if _, ok := known[span]; ok {
			continue
		}
		fragment := doc.Slice(span.Start, span.End)
		if !looksLikeName(fragment) {
			continue
		}
		out = append(out, matcher.Record{
			Start:    span.Start,
			End:      span.End,
			Fragment: fragment,
			Flag:     matcher.FlagFull,
		})
	}
	return out, nil
}

// looksLikeName rejects runs with one-letter words, all-caps words or
// lowercase connecting words.
func looksLikeName(fragment string) bool {
	words := strings.Fields(fragment)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		rs := []rune(w)
		if len(rs) < 2 || strings.ToUpper(w) == w || strings.ToLower(w[:1]) == w[:1] {
			return false
		}
	}
	return true
}
