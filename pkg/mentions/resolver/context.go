package resolver

import (
	"sort"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// paragraphStats are the aggregates of one paragraph.
type paragraphStats struct {
	// names counts mention names per entity type.
	names         map[string]map[string]int
	countries     map[string]int
	nationalities []string
	dates         []string
	professions   []string
}

func newParagraphStats() *paragraphStats {
	return &paragraphStats{
		names:     make(map[string]map[string]int),
		countries: make(map[string]int),
	}
}

func (s *paragraphStats) countName(typ, name string) {
	table, ok := s.names[typ]
	if !ok {
		table = make(map[string]int)
		s.names[typ] = table
	}
	table[name]++
}

// pronounSlots hold the latest antecedent candidates by class.
type pronounSlots struct {
	lastPerson       *mentions.Mention
	beforeLastPerson *mentions.Mention
	lastMale         *mentions.Mention
	beforeLastMale   *mentions.Mention
	lastFemale       *mentions.Mention
	beforeLastFemale *mentions.Mention
	lastUnknown      *mentions.Mention
	lastLocation     *mentions.Mention
	lastThing        *mentions.Mention
}

// Context holds the per-paragraph statistics of one document and the
// document-wide pronoun antecedent state. It is built from the offset-sorted
// sequence of mentions and temporal mentions and rebuilt, not repaired, when
// resolved senses change.
type Context struct {
	kb           kb.KnowledgeBase
	paragraphs   []int
	stats        []*paragraphStats
	peopleInText map[int]struct{}
	slots        pronounSlots
}

// NewContext computes the paragraph statistics. paragraphs must start with 0
// and be ascending; nationalities are the nationality-form mentions.
func NewContext(base kb.KnowledgeBase, text *textutil.Text, seq []mentions.Annotation, paragraphs []int, nationalities []*mentions.Mention) *Context {
	if len(paragraphs) == 0 {
		paragraphs = []int{0}
	}
	c := &Context{
		kb:           base,
		paragraphs:   paragraphs,
		stats:        make([]*paragraphStats, len(paragraphs)),
		peopleInText: make(map[int]struct{}),
	}
	for i := range c.stats {
		c.stats[i] = newParagraphStats()
	}

	for _, n := range nationalities {
		st := c.stats[c.paragraphOf(n.Start)]
		name := strings.ToLower(n.Source)
		if !containsString(st.nationalities, name) {
			st.nationalities = append(st.nationalities, name)
		}
	}

	for _, a := range seq {
		p := c.paragraphOf(a.Bounds().Start)
		st := c.stats[p]

		switch item := a.(type) {
		case *mentions.TemporalMention:
			st.dates = append(st.dates, item.ContextDates()...)
		case *mentions.Mention:
			id, ok := item.ResolvedID()
			if !ok {
				continue
			}
			if !item.PoorlyDisambiguated {
				c.countResolved(st, id)
				continue
			}
			parText := text.Slice(c.paragraphs[p], c.paragraphEnd(p))
			for _, cand := range item.Candidates {
				if !base.EntityType(cand.ID).Has(kb.TypePerson) {
					continue
				}
				for _, role := range base.FieldList(cand.ID, kb.FieldRoles) {
					if strings.Contains(parText, role) && !containsString(st.professions, role) {
						st.professions = append(st.professions, role)
					}
				}
			}
		}
	}
	return c
}

// countResolved adds an unambiguously resolved entity to the name tables.
// Geographic entities also count their country.
func (c *Context) countResolved(st *paragraphStats, id int) {
	types := c.kb.EntityType(id)
	name := c.kb.Field(id, kb.FieldName)
	for _, typ := range types {
		st.countName(typ, name)
	}
	if !types.HasAny(kb.TypeLocation, kb.TypeGeographical) {
		return
	}
	country := c.kb.Field(id, kb.FieldCountry)
	if country == "" {
		return
	}
	for _, typ := range types {
		st.countName(typ, country)
	}
	st.countries[country]++
}

// paragraphOf returns the index of the paragraph containing offset.
func (c *Context) paragraphOf(offset int) int {
	i := sort.Search(len(c.paragraphs), func(i int) bool { return c.paragraphs[i] > offset }) - 1
	if i < 0 {
		return 0
	}
	return i
}

// paragraphEnd returns the exclusive end offset of paragraph p.
func (c *Context) paragraphEnd(p int) int {
	if p+1 < len(c.paragraphs) {
		return c.paragraphs[p+1]
	}
	return int(^uint(0) >> 1)
}

// ParagraphStart returns the start offset of the paragraph containing offset.
func (c *Context) ParagraphStart(offset int) int {
	return c.paragraphs[c.paragraphOf(offset)]
}

// mentionedInParagraph is the share, in percent, of the first of names found
// in the paragraph's table for typ.
func (c *Context) mentionedInParagraph(p int, names []string, typ string) float64 {
	table := c.stats[p].names[typ]
	if len(table) == 0 {
		return 0
	}
	count := 0
	for _, n := range names {
		if v, ok := table[n]; ok {
			count = v
			break
		}
	}
	if count == 0 {
		return 0
	}
	total := 0
	for _, v := range table {
		total += v
	}
	return float64(count) * 100 / float64(total)
}

// PersonScore averages the nationality, date, profession and own-name
// percentiles of a person candidate in the paragraph containing offset.
func (c *Context) PersonScore(offset, id int) float64 {
	p := c.paragraphOf(offset)
	st := c.stats[p]

	var nationality float64
	if len(st.nationalities) > 0 {
		own := c.kb.Nationalities(id)
		hits := 0
		for _, n := range st.nationalities {
			if containsString(own, n) {
				hits++
			}
		}
		nationality = float64(hits) * 100 / float64(len(st.nationalities))
	}

	date := dateOverlap(st.dates, c.kb.Dates(id))

	var profession float64
	if len(st.professions) > 0 {
		hits := 0
		for _, role := range c.kb.FieldList(id, kb.FieldRoles) {
			if containsString(st.professions, role) {
				hits++
			}
		}
		profession = float64(hits) * 100 / float64(len(st.professions))
	}

	name := c.mentionedInParagraph(p, []string{c.kb.Field(id, kb.FieldName)}, kb.TypePerson)
	return (nationality + date + profession + name) / 4
}

// CountryScore is the share, in percent, of the paragraph's geographic
// mentions that lie in country.
func (c *Context) CountryScore(offset int, country string) float64 {
	st := c.stats[c.paragraphOf(offset)]
	n, ok := st.countries[country]
	if country == "" || !ok {
		return 0
	}
	total := 0
	for _, v := range st.countries {
		total += v
	}
	return float64(n) * 100 / float64(total)
}

// OrgEventScore averages the own-name, seat and date percentiles of an
// organisation or event candidate.
func (c *Context) OrgEventScore(offset, id int) float64 {
	p := c.paragraphOf(offset)
	types := c.kb.EntityType(id)

	typ := kb.TypeEvent
	dateFields := []string{kb.FieldStart, kb.FieldEnd}
	if types.Has(kb.TypeOrganisation) {
		typ = kb.TypeOrganisation
		dateFields = []string{kb.FieldFounded, kb.FieldCancelled}
	}

	name := c.mentionedInParagraph(p, []string{c.kb.Field(id, kb.FieldName)}, typ)
	place := c.mentionedInParagraph(p, []string{c.kb.Field(id, kb.FieldLocation)}, kb.TypeSettlement)

	var own []string
	for _, f := range dateFields {
		if v := c.kb.Field(id, f); v != "" {
			own = append(own, v)
		}
	}
	date := dateOverlap(c.stats[p].dates, own)
	return (name + place + date) / 3
}

// CommonScore is the best own-name percentile over the candidate's types.
func (c *Context) CommonScore(offset, id int) float64 {
	p := c.paragraphOf(offset)
	names := []string{c.kb.Field(id, kb.FieldName)}
	var best float64
	for _, typ := range c.kb.EntityType(id) {
		if s := c.mentionedInParagraph(p, names, typ); s > best {
			best = s
		}
	}
	return best
}

// CountPersonName records one more mention of a person's name in the
// paragraph containing offset.
func (c *Context) CountPersonName(offset int, name string) {
	c.stats[c.paragraphOf(offset)].countName(kb.TypePerson, name)
}

// AddPersonInText marks a person id as mentioned in the document.
func (c *Context) AddPersonInText(id int) { c.peopleInText[id] = struct{}{} }

// PersonInText reports whether a person id is mentioned in the document.
func (c *Context) PersonInText(id int) bool {
	_, ok := c.peopleInText[id]
	return ok
}

// ResetSlots forgets every pronoun antecedent.
func (c *Context) ResetSlots() { c.slots = pronounSlots{} }

// Update folds a resolved mention into the antecedent slots.
func (c *Context) Update(m *mentions.Mention) {
	id, ok := m.ResolvedID()
	if !ok {
		return
	}
	types := c.kb.EntityType(id)
	s := &c.slots

	switch {
	case types.Has(kb.TypePerson):
		s.beforeLastPerson = s.lastPerson
		s.lastPerson = m
		switch c.kb.Field(id, kb.FieldGender) {
		case "M":
			s.beforeLastMale = s.lastMale
			s.lastMale = m
			s.lastUnknown = nil
		case "F":
			s.beforeLastFemale = s.lastFemale
			s.lastFemale = m
			s.lastUnknown = nil
		default:
			s.lastUnknown = m
		}
	case types.Has(kb.TypeLocation):
		s.lastLocation = m
	default:
		s.lastThing = m
	}
}

// dateOverlap is the percentage of context dates that contain, or are
// contained in, at least one of own. A context date counts once however many
// own dates it matches.
func dateOverlap(context, own []string) float64 {
	if len(context) == 0 {
		return 0
	}
	hits := 0
	for _, cd := range context {
		for _, od := range own {
			if cd != "" && od != "" && (strings.Contains(cd, od) || strings.Contains(od, cd)) {
				hits++
				break
			}
		}
	}
	return float64(hits) * 100 / float64(len(context))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
