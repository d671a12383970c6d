package mentions

import (
	"fmt"
	"strconv"
	"strings"
)

// Annotation is anything placed on the offset-ordered output sequence.
type Annotation interface {
	Bounds() Span
}

// ISODate is a calendar date; zero month or day means unknown.
type ISODate struct {
	Year  int
	Month int
	Day   int
}

// String formats the date as YYYY-MM-DD, zero-padded.
func (d ISODate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// WithoutZeros drops an unknown day, and an unknown month with it: 1950,
// 1950-03 or 1950-03-02.
func (d ISODate) WithoutZeros() string {
	s := fmt.Sprintf("%04d", d.Year)
	if d.Month != 0 {
		s += fmt.Sprintf("-%02d", d.Month)
		if d.Day != 0 {
			s += fmt.Sprintf("-%02d", d.Day)
		}
	}
	return s
}

// IsZero reports whether no component is known.
func (d ISODate) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// ParseISODate parses YYYY, YYYY-MM or YYYY-MM-DD. The empty string is the zero date.
func ParseISODate(s string) (ISODate, error) {
	var d ISODate
	if s == "" {
		return d, nil
	}
	parts := strings.Split(s, "-")
	if len(parts) > 3 {
		return d, fmt.Errorf("invalid ISO date %q", s)
	}
	dst := []*int{&d.Year, &d.Month, &d.Day}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return ISODate{}, fmt.Errorf("invalid ISO date %q: %w", s, err)
		}
		*dst[i] = n
	}
	return d, nil
}

// TemporalKind distinguishes single dates from intervals.
type TemporalKind int

const (
	TemporalDate TemporalKind = iota
	TemporalInterval
)

func (k TemporalKind) String() string {
	if k == TemporalInterval {
		return "interval"
	}
	return "date"
}

// TemporalMention is a date or interval found in the text. It is never
// disambiguated; it reserves its span and feeds paragraph date statistics.
type TemporalMention struct {
	Span
	Source     string
	Kind       TemporalKind
	Date       ISODate
	From       ISODate
	To         ISODate
	Confidence int
}

// NewDate creates a single-date mention.
func NewDate(start int, source string, date ISODate, confidence int) *TemporalMention {
	return &TemporalMention{
		Span:       Span{Start: start, End: start + len([]rune(source))},
		Source:     source,
		Kind:       TemporalDate,
		Date:       date,
		Confidence: confidence,
	}
}

// NewInterval creates an interval mention.
func NewInterval(start int, source string, from, to ISODate, confidence int) *TemporalMention {
	return &TemporalMention{
		Span:       Span{Start: start, End: start + len([]rune(source))},
		Source:     source,
		Kind:       TemporalInterval,
		From:       from,
		To:         to,
		Confidence: confidence,
	}
}

// Bounds implements Annotation.
func (t *TemporalMention) Bounds() Span { return t.Span }

// ContextDates returns the dates this mention contributes to paragraph statistics.
func (t *TemporalMention) ContextDates() []string {
	if t.Kind == TemporalInterval {
		return []string{t.From.WithoutZeros(), t.To.WithoutZeros()}
	}
	return []string{t.Date.WithoutZeros()}
}

// Payload is the serialised value: the ISO date, or "FROM -- TO".
func (t *TemporalMention) Payload() string {
	if t.Kind == TemporalInterval {
		return t.From.String() + " -- " + t.To.String()
	}
	return t.Date.String()
}
