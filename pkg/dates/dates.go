// Package dates finds calendar dates and year intervals in text. It covers
// ISO dates, numeric day.month.year dates, English month-name dates and year
// ranges; locale grammars beyond that are out of its reach.
package dates

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// Finder finds temporal mentions.
type Finder interface {
	Find(text string, splitIntervals bool) []*mentions.TemporalMention
}

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "jun": 6, "jul": 7, "aug": 8,
	"sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

const monthRe = `(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)\.?`

type rule struct {
	re         *regexp.Regexp
	confidence int
	build      func(m []string) (from, to mentions.ISODate, interval, ok bool)
}

// Rules are tried in order; earlier rules win on overlap.
var rules = []rule{
	{
		re:         regexp.MustCompile(`\b(\d{4})\s?(?:--|-|–|—)\s?(\d{4})\b`),
		confidence: 90,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			from, to := atoi(m[1]), atoi(m[2])
			return mentions.ISODate{Year: from}, mentions.ISODate{Year: to}, true, from < to
		},
	},
	{
		re:         regexp.MustCompile(`(?i)\bfrom (\d{4}) (?:to|until|till) (\d{4})\b`),
		confidence: 80,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			from, to := atoi(m[1]), atoi(m[2])
			return mentions.ISODate{Year: from}, mentions.ISODate{Year: to}, true, from <= to
		},
	},
	{
		re:         regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`),
		confidence: 100,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			d := mentions.ISODate{Year: atoi(m[1]), Month: atoi(m[2]), Day: atoi(m[3])}
			return d, d, false, valid(d)
		},
	},
	{
		re:         regexp.MustCompile(`\b(\d{1,2})\.\s?(\d{1,2})\.\s?(\d{4})\b`),
		confidence: 100,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			d := mentions.ISODate{Year: atoi(m[3]), Month: atoi(m[2]), Day: atoi(m[1])}
			return d, d, false, valid(d)
		},
	},
	{
		re:         regexp.MustCompile(`\b` + monthRe + ` (\d{1,2})(?:st|nd|rd|th)?, (\d{4})\b`),
		confidence: 100,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			d := mentions.ISODate{Year: atoi(m[3]), Month: months[strings.ToLower(m[1])], Day: atoi(m[2])}
			return d, d, false, valid(d)
		},
	},
	{
		re:         regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)? (?:of )?` + monthRe + `,? (\d{4})\b`),
		confidence: 100,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			d := mentions.ISODate{Year: atoi(m[3]), Month: months[strings.ToLower(m[2])], Day: atoi(m[1])}
			return d, d, false, valid(d)
		},
	},
	{
		re:         regexp.MustCompile(`\b` + monthRe + `,? (\d{4})\b`),
		confidence: 90,
		build: func(m []string) (mentions.ISODate, mentions.ISODate, bool, bool) {
			d := mentions.ISODate{Year: atoi(m[2]), Month: months[strings.ToLower(m[1])]}
			return d, d, false, valid(d)
		},
	},
}

// RegexFinder is the built-in Finder.
type RegexFinder struct{}

// NewFinder returns the built-in finder.
func NewFinder() *RegexFinder { return &RegexFinder{} }

// Find returns the dates in text ordered by start. Offsets are codepoints.
// With splitIntervals an interval becomes two dates, each covering its own
// part of the source.
func (RegexFinder) Find(text string, splitIntervals bool) []*mentions.TemporalMention {
	runeAt := textutil.RuneOffsets(text)
	var taken []mentions.Span
	var out []*mentions.TemporalMention

	for _, r := range rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(text, -1) {
			span := mentions.Span{Start: runeAt[loc[0]], End: runeAt[loc[1]]}
			if overlapsAny(span, taken) {
				continue
			}
			groups := make([]string, len(loc)/2)
			for i := range groups {
				if loc[2*i] >= 0 {
					groups[i] = text[loc[2*i]:loc[2*i+1]]
				}
			}
			from, to, interval, ok := r.build(groups)
			if !ok {
				continue
			}
			taken = append(taken, span)
			source := groups[0]

			if !interval {
				out = append(out, mentions.NewDate(span.Start, source, from, r.confidence))
				continue
			}
			if !splitIntervals {
				out = append(out, mentions.NewInterval(span.Start, source, from, to, r.confidence))
				continue
			}
			out = append(out,
				mentions.NewDate(runeAt[loc[2]], groups[1], from, r.confidence),
				mentions.NewDate(runeAt[loc[4]], groups[2], to, r.confidence))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlapsAny(s mentions.Span, spans []mentions.Span) bool {
	for _, o := range spans {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

func valid(d mentions.ISODate) bool {
	if d.Month < 0 || d.Month > 12 || d.Day < 0 || d.Day > 31 {
		return false
	}
	return d.Day == 0 || d.Month != 0
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
