package resolver

import (
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
)

// repairPoorDisambiguation overrides ambiguous mentions that no context
// supported with the sense of the nearest strong mention: an unambiguous
// mention resolved to one of their senses or having the same text.
func (d *document) repairPoorDisambiguation(ms []*mentions.Mention) {
	byID := make(map[int][]*mentions.Mention)
	bySource := make(map[string][]*mentions.Mention)

	for _, m := range ms {
		if m.IsCoreference || m.PoorlyDisambiguated {
			continue
		}
		id, ok := m.ResolvedID()
		if !ok {
			continue
		}
		byID[id] = append(byID[id], m)
		bySource[m.Source] = append(bySource[m.Source], m)
	}

	for _, m := range ms {
		if m.IsCoreference || !m.PoorlyDisambiguated || len(m.Candidates) < 2 {
			continue
		}
		var strong []*mentions.Mention
		for _, id := range m.Senses {
			strong = append(strong, byID[id]...)
		}
		if len(strong) == 0 {
			strong = bySource[m.Source]
		}
		if len(strong) == 0 {
			continue
		}
		id, _ := nearest(m, strong).ResolvedID()
		d.setSense(m, mentions.KBID(id))
		m.PoorlyDisambiguated = false
	}
}

// nearest returns the candidate closest to m by start offset; ties go to the
// first in candidates order.
func nearest(m *mentions.Mention, candidates []*mentions.Mention) *mentions.Mention {
	var best *mentions.Mention
	bestDist := 0
	for _, c := range candidates {
		dist := c.Start - m.Start
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best
}

// nearestPredecessor returns the candidate starting closest before m, or nil.
func nearestPredecessor(m *mentions.Mention, candidates []*mentions.Mention) *mentions.Mention {
	var best *mentions.Mention
	for _, c := range candidates {
		if c.Start >= m.Start {
			continue
		}
		if best == nil || c.Start > best.Start {
			best = c
		}
	}
	return best
}
