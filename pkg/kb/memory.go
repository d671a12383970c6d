package kb

import (
	"context"
	"sort"
	"strconv"
	"strings"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// Memory is an in-memory KnowledgeBase. It is safe for concurrent readers
// once constructed.
type Memory struct {
	version      string
	entities     map[int]*Entity
	names        NameIndex
	nationalForm map[string]struct{}
	nameCache    func(m *Memory)
}

// Option configures a Memory store.
type Option func(*Memory)

// WithNameIndex installs a prebuilt (typically cached) name index instead of
// building one from the entities.
func WithNameIndex(idx NameIndex) Option {
	return func(m *Memory) {
		m.names = idx
	}
}

// WithNameCache looks the name index up in cache before building it and stores
// freshly built indexes. onErr, if non-nil, receives cache failures.
func WithNameCache(ctx context.Context, cache NameIndexCache, onErr func(error)) Option {
	return func(m *Memory) {
		m.nameCache = func(m *Memory) {
			idx, err := CachedNameIndex(ctx, cache, m.version, m.Entities())
			if err != nil && onErr != nil {
				onErr(err)
			}
			m.names = idx
		}
	}
}

// NewMemory builds a store from entities. Duplicate ids keep the last entity.
func NewMemory(version string, entities []*Entity, opts ...Option) *Memory {
	m := &Memory{
		version:      version,
		entities:     make(map[int]*Entity, len(entities)),
		nationalForm: make(map[string]struct{}),
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		m.entities[e.ID] = e
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.names == nil && m.nameCache != nil {
		m.nameCache(m)
	}
	if m.names == nil {
		m.names = BuildNameIndex(m.Entities())
	}
	for _, e := range m.entities {
		if !e.Types.Has(TypeNationality) {
			continue
		}
		for _, n := range m.Nationalities(e.ID) {
			m.nationalForm[n] = struct{}{}
		}
	}
	return m
}

// Version returns the knowledge base build identifier.
func (m *Memory) Version() string { return m.version }

// Len returns the number of entities.
func (m *Memory) Len() int { return len(m.entities) }

// Entities returns every entity ordered by id.
func (m *Memory) Entities() []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Entity returns the entity with the given id, or nil.
func (m *Memory) Entity(id int) *Entity { return m.entities[id] }

// NameIndex returns the person sub-name index.
func (m *Memory) NameIndex() NameIndex { return m.names }

func (m *Memory) EntityType(id int) TypeSet {
	if e := m.entities[id]; e != nil {
		return e.Types
	}
	return nil
}

func (m *Memory) Field(id int, name string) string {
	return m.entities[id].Field(name)
}

func (m *Memory) FieldList(id int, name string) []string {
	return m.entities[id].FieldList(name)
}

func (m *Memory) Confidence(id int) (float64, error) {
	e := m.entities[id]
	raw := strings.TrimSpace(e.Field(FieldConfidence))
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		row := make(map[string]string)
		if e != nil {
			for k, v := range e.Fields {
				row[k] = v
			}
			row[FieldType] = e.Types.String()
		}
		return 0, &pferrors.ScoreFormatError{
			EntityID:  id,
			Raw:       raw,
			Row:       row,
			KBVersion: m.version,
		}
	}
	return score, nil
}

func (m *Memory) Nationalities(id int) []string {
	e := m.entities[id]
	if e == nil {
		return nil
	}
	var values []string
	if e.Types.Has(TypeNationality) {
		values = append(values, e.FieldList(FieldAliases)...)
		values = append(values, e.FieldList(FieldName)...)
		values = append(values, e.FieldList(FieldCountry)...)
	} else {
		values = e.FieldList(FieldNationalities)
	}
	return lowerUnique(values)
}

func (m *Memory) Dates(id int) []string {
	e := m.entities[id]
	var out []string
	for _, f := range []string{FieldDateOfBirth, FieldDateOfDeath} {
		if v := strings.TrimSpace(e.Field(f)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (m *Memory) PeopleNamed(folded string) []int {
	return m.names[folded]
}

func (m *Memory) IsNationalityForm(text string) bool {
	_, ok := m.nationalForm[strings.ToLower(text)]
	return ok
}

func (m *Memory) URI(id int) string {
	e := m.entities[id]
	for _, f := range []string{FieldWikidataURL, FieldWikipediaURL, FieldDBpediaURL} {
		if v := e.Field(f); v != "" {
			return v
		}
	}
	return ""
}

func lowerUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

var _ KnowledgeBase = (*Memory)(nil)
