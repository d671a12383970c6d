package resolver

import (
	"fmt"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
)

// disambiguateWithoutContext filters the senses of m and picks a provisional
// sense from static scores. Pronouns and name fragments are only flagged as
// coreferences.
func (d *document) disambiguateWithoutContext(m *mentions.Mention) error {
	if d.isPronoun(m) || len(m.PartialMatchSenses) > 0 {
		m.IsCoreference = true
		return nil
	}

	senses := d.lang.FilterSenses(m.Senses, senseEnv{d: d, m: m})
	senses = d.preferArtists(senses)
	senses = d.filterByCopula(m, senses)
	m.Senses = mentions.SortedUnique(senses)
	m.SetCandidates(m.Senses)

	switch len(m.Candidates) {
	case 0:
		return nil
	case 1:
		d.setSense(m, mentions.KBID(m.Candidates[0].ID))
		m.PoorlyDisambiguated = false
		return nil
	}

	if err := d.scoreStatic(m); err != nil {
		return err
	}
	d.setSense(m, mentions.KBID(m.Candidates[argmax(m.Candidates)].ID))
	return nil
}

// preferArtists drops groups when an artist shares the label.
func (d *document) preferArtists(senses []int) []int {
	hasArtist := false
	for _, id := range senses {
		if d.kb.EntityType(id).Has(kb.TypeArtist) {
			hasArtist = true
			break
		}
	}
	if !hasArtist {
		return senses
	}
	var out []int
	for _, id := range senses {
		if !d.kb.EntityType(id).Has(kb.TypeGroup) {
			out = append(out, id)
		}
	}
	return out
}

// filterByCopula keeps the persons whose role follows a copula verb in the
// rest of the sentence ("Washington was the first president").
func (d *document) filterByCopula(m *mentions.Mention, senses []int) []int {
	sentence := d.rightSentence(m.End)

	verbAt := -1
	for _, verb := range d.lang.CopulaVerbs() {
		if verbAt = strings.Index(sentence, verb); verbAt != -1 {
			break
		}
	}
	if verbAt == -1 {
		return senses
	}
	complement := sentence[verbAt:]

	var roles []string
	for _, id := range senses {
		if !d.kb.EntityType(id).Has(kb.TypePerson) {
			continue
		}
		for _, role := range d.kb.FieldList(id, kb.FieldRoles) {
			if strings.Contains(complement, " "+role+" ") {
				roles = append(roles, role)
			}
		}
		if len(roles) > 0 {
			break
		}
	}
	if len(roles) == 0 {
		return senses
	}

	var out []int
	for _, id := range senses {
		if !d.kb.EntityType(id).Has(kb.TypePerson) {
			continue
		}
		for _, role := range d.kb.FieldList(id, kb.FieldRoles) {
			if containsString(roles, role) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// rightSentence returns the text after offset up to and including the next
// full stop, skipping parenthesised parts, bounded by the copula window.
func (d *document) rightSentence(offset int) string {
	var b strings.Builder
	depth := 0
	r := d.text.Runes()
	limit := len(r)
	if w := d.config.CopulaWindow; w > 0 && offset+w < limit {
		limit = offset + w
	}
	for i := offset; i < limit; i++ {
		switch c := r[i]; {
		case c == ')':
			depth--
		case c == '(':
			depth++
		case depth == 0:
			b.WriteRune(c)
			if c == '.' {
				return b.String()
			}
		}
	}
	return b.String()
}

func (d *document) scoreStatic(m *mentions.Mention) error {
	for i := range m.Candidates {
		score, err := d.kb.Confidence(m.Candidates[i].ID)
		if err != nil {
			return fmt.Errorf("score %q at %d: %w", m.Source, m.Start, err)
		}
		m.Candidates[i].Static = score
	}
	return nil
}

// disambiguateWithContext rescores the candidates of m with the paragraph
// statistics of c and records the outcome in c.
func (d *document) disambiguateWithContext(m *mentions.Mention, c *Context) error {
	if m.IsCoreference || len(m.Candidates) == 0 {
		return nil
	}
	if err := d.scoreStatic(m); err != nil {
		return err
	}

	for i := range m.Candidates {
		id := m.Candidates[i].ID
		types := d.kb.EntityType(id)

		var score float64
		switch {
		case types.HasAny(kb.TypeGeographical, kb.TypeLocation):
			score = c.CountryScore(m.Start, d.kb.Field(id, kb.FieldCountry))
		case types.Has(kb.TypePerson):
			score = c.PersonScore(m.Start, id)
		case types.HasAny(kb.TypeOrganisation, kb.TypeEvent):
			score = c.OrgEventScore(m.Start, id)
		default:
			score = c.CommonScore(m.Start, id)
		}
		if score > 0 {
			m.PoorlyDisambiguated = false
		}
		m.Candidates[i].Context = score
	}

	winner := m.Candidates[argmax(m.Candidates)].ID
	d.setSense(m, mentions.KBID(winner))

	if len(m.Candidates) != 1 && d.kb.EntityType(winner).Has(kb.TypePerson) {
		c.CountPersonName(m.Start, d.kb.Field(winner, kb.FieldName))
	}
	return nil
}

// argmax returns the index of the best combined score; ties go to the first.
func argmax(cands []mentions.Candidate) int {
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Score() > cands[best].Score() {
			best = i
		}
	}
	return best
}
