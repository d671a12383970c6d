package resolver

import (
	"sort"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// KeepLongest keeps, in input order, every mention disjoint from the ones
// already kept. The matcher emits the longest match first for each start.
func KeepLongest(ms []*mentions.Mention) []*mentions.Mention {
	var kept []*mentions.Mention
	var spans []mentions.Span
	for _, m := range ms {
		if overlapsAny(m.Span, spans) {
			continue
		}
		spans = append(spans, m.Span)
		kept = append(kept, m)
	}
	return kept
}

func overlapsAny(s mentions.Span, spans []mentions.Span) bool {
	for _, o := range spans {
		if s.Overlaps(o) {
			return true
		}
	}
	return false
}

// MergeOverlapping folds mentions that overlap the running composite into it,
// widening its span and uniting the senses. A new mention containing a comma
// is dropped instead; when the composite itself contains a comma and the new
// mention has senses, the composite is cut at the new mention's start and left
// without senses.
func MergeOverlapping(text *textutil.Text, ms []*mentions.Mention) []*mentions.Mention {
	sorted := append([]*mentions.Mention(nil), ms...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []*mentions.Mention
	for _, m := range sorted {
		if len(out) == 0 {
			out = append(out, m)
			continue
		}
		cur := out[len(out)-1]
		if !cur.Overlaps(m.Span) {
			out = append(out, m)
			continue
		}
		if cur.Contains(m.Span) || strings.Contains(m.Source, ",") {
			continue
		}
		if strings.Contains(cur.Source, ",") && len(m.Senses) > 0 {
			truncate(text, cur, m.Start)
			out = append(out, m)
			continue
		}
		if cur.Parents == nil {
			cur = composite(cur)
			out[len(out)-1] = cur
		}
		cur.Parents = append(cur.Parents, m)
		cur.Senses = mentions.Union(cur.Senses, m.Senses)
		cur.PartialMatchSenses = mentions.Union(cur.PartialMatchSenses, m.PartialMatchSenses)
		if m.End > cur.End {
			cur.End = m.End
		}
		cur.Source = text.Slice(cur.Start, cur.End)
	}
	return out
}

// composite wraps m into a new mention that lists it as its first parent.
func composite(m *mentions.Mention) *mentions.Mention {
	c := mentions.NewMention(m.Start, m.End, m.Source, m.Senses)
	c.Flag = m.Flag
	c.PartialMatchSenses = append([]int(nil), m.PartialMatchSenses...)
	c.IsNationality = m.IsNationality
	c.Parents = []*mentions.Mention{m}
	return c
}

// truncate cuts m at offset, trims trailing separators and drops its senses.
func truncate(text *textutil.Text, m *mentions.Mention, offset int) {
	src := strings.TrimRight(text.Slice(m.Start, offset), " \t\r\n,")
	if src == "" {
		src = text.Slice(m.Start, m.Start+1)
	}
	m.End = m.Start + len([]rune(src))
	m.Source = src
	m.Senses = nil
	m.PartialMatchSenses = nil
}

// filterProperNouns drops entity mentions that cover only part of a longer
// proper noun. An entity overlapping a proper noun is kept when, for some
// overlapping proper noun, the characters covered by no mention are only
// apostrophes and solitary spaces. cover lists mentions that count as coverage
// without being filtered, such as nationality forms.
func filterProperNouns(text *textutil.Text, ms []*mentions.Mention, nouns []mentions.Span, cover ...*mentions.Mention) []*mentions.Mention {
	n := text.Len()
	nounAt := make([]int, n)
	for i := range nounAt {
		nounAt[i] = -1
	}
	for i, pn := range nouns {
		for o := pn.Start; o < pn.End && o < n; o++ {
			nounAt[o] = i
		}
	}
	covered := make([]bool, n)
	for _, m := range append(append([]*mentions.Mention(nil), ms...), cover...) {
		for o := m.Start; o < m.End && o < n; o++ {
			covered[o] = true
		}
	}

	r := text.Runes()
	gapSpace := func(o int) bool {
		return o >= 0 && o < n && nounAt[o] >= 0 && !covered[o] && r[o] == ' '
	}
	solitary := func(o int) bool {
		return gapSpace(o) && !gapSpace(o-1) && !gapSpace(o+1)
	}
	noise := func(pn mentions.Span) bool {
		for o := pn.Start; o < pn.End && o < n; o++ {
			if covered[o] || r[o] == '\'' || solitary(o) {
				continue
			}
			return false
		}
		return true
	}

	var kept []*mentions.Mention
	for _, m := range ms {
		overlapping := make(map[int]struct{})
		for o := m.Start; o < m.End && o < n; o++ {
			if nounAt[o] >= 0 {
				overlapping[nounAt[o]] = struct{}{}
			}
		}
		if len(overlapping) == 0 {
			kept = append(kept, m)
			continue
		}
		for i := range overlapping {
			if noise(nouns[i]) {
				kept = append(kept, m)
				break
			}
		}
	}
	return kept
}

// removeNearby drops pairs of resolved, non-pronoun mentions separated only by
// spaces whose types share person or location.
func (d *document) removeNearby(ms []*mentions.Mention) []*mentions.Mention {
	sorted := append([]*mentions.Mention(nil), ms...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	for i := 1; i < len(sorted); i++ {
		cur, prev := sorted[i], sorted[i-1]
		curID, ok := cur.ResolvedID()
		if !ok || d.isPronoun(cur) {
			continue
		}
		prevID, ok := prev.ResolvedID()
		if !ok || d.isPronoun(prev) {
			continue
		}
		if !onlySpaces(d.text.Slice(prev.End, cur.Start)) {
			continue
		}
		shared := d.kb.EntityType(curID).Intersect(d.kb.EntityType(prevID))
		if shared.HasAny(kb.TypePerson, kb.TypeLocation) {
			cur.NextToSameType = true
			prev.NextToSameType = true
		}
	}

	var kept []*mentions.Mention
	for _, m := range ms {
		if !m.NextToSameType {
			kept = append(kept, m)
		}
	}
	return kept
}

func onlySpaces(s string) bool {
	return s != "" && strings.Trim(s, " ") == ""
}
