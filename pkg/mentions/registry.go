package mentions

import (
	"fmt"
	"sort"
)

// bucket is a registry key: a knowledge base id, or the null bucket.
type bucket struct {
	id    int
	valid bool
}

// Registry indexes mentions by the knowledge base id they resolve to
// directly. Unresolved and alias-resolved mentions live in the null bucket.
// Every preferred-sense change goes through SetPreferredSense so a mention is
// never in two buckets.
type Registry struct {
	bySense   map[bucket]map[*Mention]struct{}
	byMention map[*Mention]bucket
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySense:   make(map[bucket]map[*Mention]struct{}),
		byMention: make(map[*Mention]bucket),
	}
}

// Register adds m under its current sense. Registering twice is a no-op.
func (r *Registry) Register(m *Mention) {
	if _, ok := r.byMention[m]; ok {
		return
	}
	r.insert(m, bucketOf(m.preferred))
}

// SetPreferredSense changes m's sense and moves it to the matching bucket.
func (r *Registry) SetPreferredSense(m *Mention, s Sense) {
	if old, ok := r.byMention[m]; ok {
		r.remove(m, old)
	}
	m.preferred = s
	r.insert(m, bucketOf(s))
}

// MentionsFor returns the mentions resolved directly to id, by start offset.
func (r *Registry) MentionsFor(id int) []*Mention {
	return r.list(bucket{id: id, valid: true})
}

// Unresolved returns the mentions in the null bucket, by start offset.
func (r *Registry) Unresolved() []*Mention {
	return r.list(bucket{})
}

// SenseOf returns the bucket id of m; ok is false for the null bucket or an
// unregistered mention.
func (r *Registry) SenseOf(m *Mention) (int, bool) {
	b, ok := r.byMention[m]
	return b.id, ok && b.valid
}

// Len returns the number of registered mentions.
func (r *Registry) Len() int { return len(r.byMention) }

// Check verifies that both indexes agree.
func (r *Registry) Check() error {
	count := 0
	for b, set := range r.bySense {
		for m := range set {
			count++
			if got, ok := r.byMention[m]; !ok || got != b {
				return fmt.Errorf("mention %s in bucket %v but indexed as %v", m, b, got)
			}
			if want := bucketOf(m.preferred); want != b {
				return fmt.Errorf("mention %s in bucket %v but its sense is %s", m, b, m.preferred)
			}
		}
	}
	if count != len(r.byMention) {
		return fmt.Errorf("registry holds %d bucket entries for %d mentions", count, len(r.byMention))
	}
	return nil
}

func (r *Registry) insert(m *Mention, b bucket) {
	set, ok := r.bySense[b]
	if !ok {
		set = make(map[*Mention]struct{})
		r.bySense[b] = set
	}
	set[m] = struct{}{}
	r.byMention[m] = b
}

func (r *Registry) remove(m *Mention, b bucket) {
	if set, ok := r.bySense[b]; ok {
		delete(set, m)
		if len(set) == 0 {
			delete(r.bySense, b)
		}
	}
	delete(r.byMention, m)
}

func (r *Registry) list(b bucket) []*Mention {
	set := r.bySense[b]
	out := make([]*Mention, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End < out[j].End
	})
	return out
}

func bucketOf(s Sense) bucket {
	if id, ok := s.ID(); ok {
		return bucket{id: id, valid: true}
	}
	return bucket{}
}
