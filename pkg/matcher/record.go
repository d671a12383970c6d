// Package matcher finds dictionary entries in text and converts between the
// matcher's line-oriented wire format and in-memory records.
//
// Wire format, one record per line:
//
//	<id>[;<id>...] TAB <start> TAB <end> TAB <fragment> TAB <flag>
//
// start is the 1-based offset of the first codepoint and end the 1-based
// offset of the last one, so a record converts to the 0-based half-open
// range [start-1, end). Id 0 marks a pronoun.
package matcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// Quality flags.
const (
	FlagFull    = "F"
	FlagTypoFix = "S"
)

// PronounID is the knowledge base id the matcher reports for pronouns.
const PronounID = 0

// Record is one match, already converted to a 0-based half-open range.
type Record struct {
	IDs      []int
	Start    int
	End      int
	Fragment string
	Flag     string
}

// Matcher finds dictionary entries in text. Records for the same start are
// ordered longest first.
type Matcher interface {
	Lookup(ctx context.Context, text string) ([]Record, error)
}

// ParseOutput parses wire-format output. Blank lines are skipped; a line
// without exactly five fields is ErrMalformedRecord.
func ParseOutput(out string) ([]Record, error) {
	var records []Record
	for n, line := range strings.Split(out, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("matcher output line %d: %w", n+1, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func parseLine(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return Record{}, fmt.Errorf("%w: expected 5 fields, got %d", pferrors.ErrMalformedRecord, len(fields))
	}

	var ids []int
	for _, s := range strings.Split(fields[0], ";") {
		id, err := strconv.Atoi(s)
		if err != nil {
			return Record{}, fmt.Errorf("%w: bad id %q", pferrors.ErrMalformedRecord, s)
		}
		ids = append(ids, id)
	}
	start, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad start %q", pferrors.ErrMalformedRecord, fields[1])
	}
	end, err := strconv.Atoi(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("%w: bad end %q", pferrors.ErrMalformedRecord, fields[2])
	}
	if start < 1 || end < start {
		return Record{}, fmt.Errorf("%w: bad range %d-%d", pferrors.ErrMalformedRecord, start, end)
	}

	return Record{
		IDs:      ids,
		Start:    start - 1,
		End:      end,
		Fragment: fields[3],
		Flag:     fields[4],
	}, nil
}

// Format renders records in the wire format.
func Format(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		ids := make([]string, len(r.IDs))
		for i, id := range r.IDs {
			ids[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(&b, "%s\t%d\t%d\t%s\t%s\n", strings.Join(ids, ";"), r.Start+1, r.End, r.Fragment, r.Flag)
	}
	return b.String()
}

// IsPronoun reports whether the record is the pronoun marker.
func (r Record) IsPronoun() bool {
	return len(r.IDs) == 1 && r.IDs[0] == PronounID
}
