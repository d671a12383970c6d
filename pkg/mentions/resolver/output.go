package resolver

import (
	"fmt"
	"strconv"
	"strings"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// Output line kinds.
const (
	KindKB       = "kb"
	KindCoref    = "coref"
	KindName     = "name"
	KindURI      = "uri"
	KindURICoref = "uri_coref"
	KindDate     = "date"
	KindInterval = "interval"
)

// Line is one tab-separated output record.
type Line struct {
	Start    int
	End      int
	Kind     string
	Fragment string
	Payload  string
}

func (l Line) String() string {
	return strings.Join([]string{
		strconv.Itoa(l.Start), strconv.Itoa(l.End), l.Kind, l.Fragment, l.Payload,
	}, "\t")
}

// ParseLine parses a line produced by Line.String.
func ParseLine(s string) (Line, error) {
	fields := strings.SplitN(s, "\t", 5)
	if len(fields) != 5 {
		return Line{}, fmt.Errorf("%w: expected 5 fields, got %d", pferrors.ErrMalformedRecord, len(fields))
	}
	start, err := strconv.Atoi(fields[0])
	if err != nil {
		return Line{}, fmt.Errorf("%w: bad start %q", pferrors.ErrMalformedRecord, fields[0])
	}
	end, err := strconv.Atoi(fields[1])
	if err != nil {
		return Line{}, fmt.Errorf("%w: bad end %q", pferrors.ErrMalformedRecord, fields[1])
	}
	return Line{Start: start, End: end, Kind: fields[2], Fragment: fields[3], Payload: fields[4]}, nil
}

// formatter renders annotations as output lines.
type formatter struct {
	kb     kb.KnowledgeBase
	text   *textutil.Text
	scores bool
	uri    bool
}

func (f formatter) lines(seq []mentions.Annotation) []Line {
	out := make([]Line, 0, len(seq))
	for _, a := range seq {
		switch item := a.(type) {
		case *mentions.TemporalMention:
			out = append(out, Line{
				Start:    item.Start,
				End:      item.End,
				Kind:     item.Kind.String(),
				Fragment: item.Source,
				Payload:  item.Payload(),
			})
		case *mentions.Mention:
			out = append(out, f.mention(item))
		}
	}
	return out
}

func (f formatter) mention(m *mentions.Mention) Line {
	l := Line{Start: m.Start, End: m.End, Kind: f.kind(m)}
	frag := f.text.Slice(m.Start, m.End)
	frag = strings.ReplaceAll(frag, "\n", " ")
	l.Fragment = strings.ReplaceAll(frag, "\r", "")

	delim := ";"
	if f.uri {
		delim = "|"
	}

	switch id, resolved := m.ResolvedID(); {
	case f.scores && len(m.Candidates) > 0:
		parts := make([]string, len(m.Candidates))
		for i, c := range m.Candidates {
			parts[i] = f.link(c.ID) + " " + strconv.FormatFloat(c.Score(), 'f', -1, 64)
		}
		l.Payload = strings.Join(parts, delim)
	case resolved:
		l.Payload = f.link(id)
	default:
		senses := m.Senses
		if m.IsCoreference {
			senses = m.PartialMatchSenses
		}
		senses = mentions.SortedUnique(senses)
		parts := make([]string, len(senses))
		for i, id := range senses {
			parts[i] = f.link(id)
		}
		l.Payload = strings.Join(parts, delim)
	}
	return l
}

func (f formatter) kind(m *mentions.Mention) string {
	switch {
	case m.IsCoreference && f.uri:
		return KindURICoref
	case m.IsCoreference:
		return KindCoref
	case m.IsName:
		return KindName
	case f.uri:
		return KindURI
	}
	return KindKB
}

func (f formatter) link(id int) string {
	if f.uri {
		return f.kb.URI(id)
	}
	return strconv.Itoa(id)
}
