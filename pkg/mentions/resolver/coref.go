package resolver

import (
	"sort"
	"strings"

	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// Coreference methods reported to metrics.
const (
	corefName    = "name"
	corefPronoun = "pronoun"
)

// resolveCoreferences resolves the coreference mentions among ms in order,
// pointing name fragments and pronouns at earlier mentions. The antecedent
// slots are refilled from the start of ms on every call.
func (d *document) resolveCoreferences(ms []*mentions.Mention, c *Context) error {
	c.ResetSlots()
	for _, m := range ms {
		if m.IsCoreference {
			continue
		}
		if id, ok := m.ResolvedID(); ok && d.kb.EntityType(id).Has(kb.TypePerson) {
			c.AddPersonInText(id)
		}
	}

	for _, m := range ms {
		if m.IsCoreference && m.Preferred().Kind() != mentions.SenseAlias {
			if err := d.resolveCoreference(m, c); err != nil {
				return err
			}
		}
		if m.HasPreferredSense() {
			c.Update(m)
		}
	}
	return nil
}

func (d *document) resolveCoreference(m *mentions.Mention, c *Context) error {
	partial := m.PartialMatchSenses
	if d.opts.Mode != ModeAll {
		var inText []int
		for _, id := range partial {
			if c.PersonInText(id) {
				inText = append(inText, id)
			}
		}
		partial = inText
		m.PartialMatchSenses = inText
	}

	switch {
	case len(partial) > 0:
		return d.resolveNameCoreference(m, partial)
	case d.isPronoun(m):
		d.resolvePronoun(m, c)
		return nil
	case len(m.Senses) > 0:
		m.IsCoreference = false
		if err := d.disambiguateWithoutContext(m); err != nil {
			return err
		}
		return d.disambiguateWithContext(m, c)
	}
	return nil
}

// resolveNameCoreference aliases m to the nearest earlier mention of the most
// confident person among ids.
func (d *document) resolveNameCoreference(m *mentions.Mention, ids []int) error {
	scores := make(map[int]float64, len(ids))
	for _, id := range ids {
		s, err := d.kb.Confidence(id)
		if err != nil {
			return err
		}
		scores[id] = s
	}
	best := append([]int(nil), ids...)
	sort.SliceStable(best, func(i, j int) bool { return scores[best[i]] > scores[best[j]] })

	candidates := d.registry.MentionsFor(best[0])
	if !strings.HasPrefix(strings.ToLower(m.Source), "the ") {
		var containing []*mentions.Mention
		for _, cand := range candidates {
			if textutil.ContainsFolded(cand.Source, m.Source) {
				containing = append(containing, cand)
			}
		}
		candidates = containing
	}

	if ante := nearestPredecessor(m, candidates); ante != nil {
		d.setSense(m, mentions.AliasOf(ante))
		d.recordCoreference(corefName)
	}
	return nil
}

// resolvePronoun points m at a same-gender antecedent within its paragraph.
func (d *document) resolvePronoun(m *mentions.Mention, c *Context) {
	if d.lang.SkipPronoun(senseEnv{d: d, m: m}) {
		return
	}
	class, _ := d.lang.PronounClass(m.Source)

	var ante *mentions.Mention
	switch class {
	case lang.GenderMale:
		ante = c.exactAntecedent(male, m.Start)
	case lang.GenderFemale:
		ante = c.exactAntecedent(female, m.Start)
	case lang.GenderAny:
		ante = c.ambiguousAntecedent(male, m.Start)
	default:
		return
	}
	if ante == nil {
		return
	}
	if p := ante.Preferred(); p.Kind() == mentions.SenseAlias {
		ante = p.Alias()
	}
	d.setSense(m, mentions.AliasOf(ante))
	d.recordCoreference(corefPronoun)
}

type gender int

const (
	male gender = iota
	female
)

func (g gender) code() string {
	if g == female {
		return "F"
	}
	return "M"
}

// genderSlots returns the last and before-last slots of g.
func (c *Context) genderSlots(g gender) (last, beforeLast **mentions.Mention) {
	if g == female {
		return &c.slots.lastFemale, &c.slots.beforeLastFemale
	}
	return &c.slots.lastMale, &c.slots.beforeLastMale
}

// promoteUnknown moves a pending unknown-gender person into g's slots.
func (c *Context) promoteUnknown(g gender) {
	if c.slots.lastUnknown == nil {
		return
	}
	last, beforeLast := c.genderSlots(g)
	*beforeLast = *last
	*last = c.slots.lastUnknown
	c.slots.lastPerson = c.slots.lastUnknown
	c.slots.lastUnknown = nil
}

// precedesInParagraph reports whether m starts before offset within the
// paragraph containing offset.
func (c *Context) precedesInParagraph(m *mentions.Mention, offset int) bool {
	return m != nil && m.Start < offset && m.Start >= c.ParagraphStart(offset)
}

// exactAntecedent serves pronouns that name one gender.
func (c *Context) exactAntecedent(g gender, offset int) *mentions.Mention {
	c.promoteUnknown(g)
	last, _ := c.genderSlots(g)
	if c.precedesInParagraph(*last, offset) {
		return *last
	}
	return nil
}

// ambiguousAntecedent serves pronouns of either gender, steered by the gender
// of the last person mentioned.
func (c *Context) ambiguousAntecedent(g gender, offset int) *mentions.Mention {
	lp := c.slots.lastPerson
	if lp == nil {
		return nil
	}
	last, beforeLast := c.genderSlots(g)

	var lastGender string
	if id, ok := lp.ResolvedID(); ok {
		lastGender = c.kb.Field(id, kb.FieldGender)
	}

	switch {
	case lastGender == g.code():
		if c.precedesInParagraph(*beforeLast, offset) {
			return *beforeLast
		}
		if c.precedesInParagraph(*last, offset) {
			return *last
		}
	case lastGender == "M" || lastGender == "F":
		if c.precedesInParagraph(*last, offset) {
			return *last
		}
	default:
		c.promoteUnknown(g)
		if c.precedesInParagraph(*last, offset) {
			return *last
		}
	}
	return nil
}
