package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/matcher"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/names"
)

// addUnknownNames inserts the names found by rec into seq. Names repeated in
// the text share a negative pseudo sense. A name equal to or inside an entity
// is dropped; a name covering entities takes their senses and replaces them.
func (d *document) addUnknownNames(ctx context.Context, rec names.Recognizer, seq []mentions.Annotation, records []matcher.Record) []mentions.Annotation {
	rows, err := rec.Recognize(ctx, d.text.String(), records)
	if err != nil {
		d.logger.Warn("Unknown name recognition failed", logging.Err(err))
		return seq
	}

	found := make([]*mentions.Mention, 0, len(rows))
	for i, row := range rows {
		m := mentions.NewMention(row.Start, row.End, d.text.Slice(row.Start, row.End), row.IDs)
		m.Flag = row.Flag
		m.IsName = true
		m.Senses = []int{-(i + 1)}
		for _, prev := range found {
			if prev.Source == m.Source {
				m.Senses = append([]int(nil), prev.Senses...)
				break
			}
		}
		d.registry.Register(m)
		found = append(found, m)
	}

	removed := make(map[*mentions.Mention]struct{})
	var added []*mentions.Mention
	for _, n := range found {
		inside := false
		var covered []*mentions.Mention
		for _, a := range seq {
			e, ok := a.(*mentions.Mention)
			if !ok {
				continue
			}
			if _, gone := removed[e]; gone {
				continue
			}
			if covers(e, n) {
				inside = true
				break
			}
			if covers(n, e) {
				covered = append(covered, e)
			}
		}
		if inside {
			continue
		}
		if len(covered) > 0 {
			var senses []int
			for _, e := range covered {
				senses = mentions.Union(senses, e.Senses)
				removed[e] = struct{}{}
			}
			n.Senses = senses
		}
		added = append(added, n)
	}

	out := make([]mentions.Annotation, 0, len(seq)+len(added))
	for _, a := range seq {
		if e, ok := a.(*mentions.Mention); ok {
			if _, gone := removed[e]; gone {
				continue
			}
		}
		out = append(out, a)
	}
	for _, n := range added {
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bounds().Start < out[j].Bounds().Start })

	d.adjustCoreferences(out, added)
	return out
}

// covers reports whether a spans b and a's text contains b's.
func covers(a, b *mentions.Mention) bool {
	return a.Contains(b.Span) && strings.Contains(a.Source, b.Source)
}

// adjustCoreferences re-points pronouns between a new name and the next
// person at the name when they pointed at the person before the name.
func (d *document) adjustCoreferences(seq []mentions.Annotation, added []*mentions.Mention) {
	for _, n := range added {
		index := -1
		for i, a := range seq {
			if a == mentions.Annotation(n) {
				index = i
				break
			}
		}
		if index < 0 {
			continue
		}

		next := -1
		for i := index + 1; i < len(seq); i++ {
			if m, ok := seq[i].(*mentions.Mention); ok && d.isPerson(m) {
				next = i
				break
			}
		}
		var prev *mentions.Mention
		for i := index - 1; i >= 0; i-- {
			if m, ok := seq[i].(*mentions.Mention); ok && d.isPerson(m) {
				prev = m
				break
			}
		}

		if next < 0 {
			break
		}
		if seq[next].(*mentions.Mention).IsName || len(n.Senses) == 0 {
			continue
		}

		nameSense := n.Senses[0]
		for i := index + 1; i < next; i++ {
			m, ok := seq[i].(*mentions.Mention)
			if !ok || !m.IsCoreference || !d.isPronoun(m) {
				continue
			}
			if prev == nil {
				d.setSense(m, mentions.KBID(nameSense))
				continue
			}
			sense, ok := m.ResolvedID()
			if ok && len(prev.Senses) > 0 && sense == prev.Senses[0] && sense != nameSense {
				d.setSense(m, mentions.KBID(nameSense))
			}
		}
	}
}

// isPerson treats names and non-coreference mentions whose first sense is a
// person as persons.
func (d *document) isPerson(m *mentions.Mention) bool {
	if m.IsName {
		return true
	}
	return !m.IsCoreference && len(m.Senses) > 0 && d.kb.EntityType(m.Senses[0]).Has(kb.TypePerson)
}
