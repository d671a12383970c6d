// Package mentions models candidate annotations over a text: entity mentions
// with their senses and disambiguation state, temporal mentions produced by
// the date finder, and the registry that indexes mentions by resolved sense.
package mentions

import (
	"fmt"
	"sort"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// Span is a half-open codepoint range [Start, End).
type Span struct {
	Start int
	End   int
}

// Len returns the number of codepoints covered.
func (s Span) Len() int { return s.End - s.Start }

// Overlaps reports whether the spans share at least one codepoint.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// SenseKind tags the variant held by a Sense.
type SenseKind int

const (
	SenseUnresolved SenseKind = iota
	SenseKBID
	SenseAlias
)

// Sense is the preferred sense of a mention: unresolved, a knowledge base id,
// or an alias of another mention whose own sense is followed on resolution.
type Sense struct {
	kind  SenseKind
	id    int
	alias *Mention
}

// Unresolved returns the empty sense.
func Unresolved() Sense { return Sense{} }

// KBID returns a sense pointing at a knowledge base id.
func KBID(id int) Sense { return Sense{kind: SenseKBID, id: id} }

// AliasOf returns a sense pointing at another mention.
func AliasOf(m *Mention) Sense {
	if m == nil {
		return Unresolved()
	}
	return Sense{kind: SenseAlias, alias: m}
}

func (s Sense) Kind() SenseKind { return s.kind }

// ID returns the id of a SenseKBID sense.
func (s Sense) ID() (int, bool) { return s.id, s.kind == SenseKBID }

// Alias returns the target of a SenseAlias sense.
func (s Sense) Alias() *Mention { return s.alias }

func (s Sense) String() string {
	switch s.kind {
	case SenseKBID:
		return fmt.Sprintf("kb:%d", s.id)
	case SenseAlias:
		return fmt.Sprintf("alias:%d-%d", s.alias.Start, s.alias.End)
	default:
		return "unresolved"
	}
}

// Candidate is one scored sense of a mention.
type Candidate struct {
	ID      int
	Static  float64
	Context float64
}

// Score is the combined static and context score.
func (c Candidate) Score() float64 { return c.Static + c.Context }

// Mention is a candidate entity annotation. Identity is pointer identity.
type Mention struct {
	Span
	// Source is the covered text, kept in sync with Span.
	Source string
	// Flag is the matcher quality flag ("F" full, "S" partial).
	Flag string

	// Senses are the plausible knowledge base ids, ascending.
	Senses []int
	// PartialMatchSenses are persons whose longer name contains Source.
	PartialMatchSenses []int
	Candidates         []Candidate

	preferred Sense

	IsCoreference       bool
	IsName              bool
	IsNationality       bool
	PoorlyDisambiguated bool
	NextToSameType      bool

	// Parents are the mentions merged into a composite; nil otherwise.
	Parents []*Mention
}

// NewMention creates an unresolved mention. senses are copied and sorted.
func NewMention(start, end int, source string, senses []int) *Mention {
	return &Mention{
		Span:                Span{Start: start, End: end},
		Source:              source,
		Senses:              SortedUnique(senses),
		PoorlyDisambiguated: true,
	}
}

// Preferred returns the raw preferred sense without following aliases.
func (m *Mention) Preferred() Sense { return m.preferred }

// PreferredEntity follows the alias chain to a knowledge base id. ok is false
// when the chain ends unresolved. A cycle is an ErrAliasCycle error.
func (m *Mention) PreferredEntity() (id int, ok bool, err error) {
	seen := make(map[*Mention]struct{})
	cur := m
	for {
		if _, loop := seen[cur]; loop {
			return 0, false, fmt.Errorf("mention %d-%d %q: %w", m.Start, m.End, m.Source, pferrors.ErrAliasCycle)
		}
		seen[cur] = struct{}{}
		switch cur.preferred.kind {
		case SenseKBID:
			return cur.preferred.id, true, nil
		case SenseAlias:
			cur = cur.preferred.alias
		default:
			return 0, false, nil
		}
	}
}

// ResolvedID is PreferredEntity with cycles treated as unresolved.
func (m *Mention) ResolvedID() (int, bool) {
	id, ok, err := m.PreferredEntity()
	if err != nil {
		return 0, false
	}
	return id, ok
}

// HasPreferredSense reports whether the mention resolves to an id.
func (m *Mention) HasPreferredSense() bool {
	_, ok := m.ResolvedID()
	return ok
}

// CandidateIDs returns the ids of the materialised candidates.
func (m *Mention) CandidateIDs() []int {
	ids := make([]int, len(m.Candidates))
	for i, c := range m.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// SetCandidates materialises one candidate per sense with zero scores.
func (m *Mention) SetCandidates(ids []int) {
	m.Candidates = make([]Candidate, len(ids))
	for i, id := range ids {
		m.Candidates[i] = Candidate{ID: id}
	}
}

// Bounds implements Annotation.
func (m *Mention) Bounds() Span { return m.Span }

func (m *Mention) String() string {
	return fmt.Sprintf("%d-%d %q senses=%v preferred=%s", m.Start, m.End, m.Source, m.Senses, m.preferred)
}

// SortedUnique returns a sorted copy of ids without duplicates.
func SortedUnique(ids []int) []int {
	if len(ids) == 0 {
		return nil
	}
	out := append([]int(nil), ids...)
	sort.Ints(out)
	j := 0
	for i := 1; i < len(out); i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	return out[:j+1]
}

// Intersect returns the ids of a present in b, in a's order.
func Intersect(a, b []int) []int {
	set := make(map[int]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []int
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Union returns the sorted union of the id lists.
func Union(lists ...[]int) []int {
	var all []int
	for _, l := range lists {
		all = append(all, l...)
	}
	return SortedUnique(all)
}
