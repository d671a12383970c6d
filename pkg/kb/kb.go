// Package kb provides the read-only knowledge base consulted by the resolver:
// entity types and attributes, confidence scores, nationalities, dates, URIs
// and the person sub-name index used for name coreference.
//
// Every backend (TSV file, SQLite, PostgreSQL) loads into the same in-memory
// store; the pipeline makes many lookups per document and never writes.
package kb

import (
	"sort"
	"strings"
)

// MultiValueDelim separates values inside one knowledge base field.
const MultiValueDelim = "|"

// Field names used by the resolver.
const (
	FieldType          = "TYPE"
	FieldName          = "NAME"
	FieldAliases       = "ALIASES"
	FieldRoles         = "ROLES"
	FieldGender        = "GENDER"
	FieldCountry       = "COUNTRY"
	FieldLocation      = "LOCATION"
	FieldFounded       = "FOUNDED"
	FieldCancelled     = "CANCELLED"
	FieldStart         = "START"
	FieldEnd           = "END"
	FieldDateOfBirth   = "DATE OF BIRTH"
	FieldDateOfDeath   = "DATE OF DEATH"
	FieldNationalities = "NATIONALITIES"
	FieldConfidence    = "CONFIDENCE"
	FieldWikidataURL   = "WIKIDATA URL"
	FieldWikipediaURL  = "WIKIPEDIA URL"
	FieldDBpediaURL    = "DBPEDIA URL"
)

// Entity types the resolver branches on.
const (
	TypePerson       = "person"
	TypeArtist       = "artist"
	TypeGroup        = "group"
	TypeLocation     = "location"
	TypeGeographical = "geographical"
	TypeOrganisation = "organisation"
	TypeEvent        = "event"
	TypeNationality  = "nationality"
	TypeSettlement   = "settlement"
)

// KnowledgeBase is the read-only view the resolver consumes.
type KnowledgeBase interface {
	// Version identifies the knowledge base build.
	Version() string
	// EntityType returns the type set of an id; unknown ids have an empty set.
	EntityType(id int) TypeSet
	// Field returns a raw field value, or "" when absent.
	Field(id int, name string) string
	// FieldList splits a multi-value field, dropping empty values.
	FieldList(id int, name string) []string
	// Confidence parses the CONFIDENCE field. A non-numeric value is an
	// *errors.ScoreFormatError, never a default.
	Confidence(id int) (float64, error)
	// Nationalities returns the lowercase nationality forms of a person or nationality entity.
	Nationalities(id int) []string
	// Dates returns the non-empty birth and death dates of a person.
	Dates(id int) []string
	// PeopleNamed returns the persons having the folded sub-name.
	PeopleNamed(folded string) []int
	// IsNationalityForm reports whether text is a known nationality form.
	IsNationalityForm(text string) bool
	// URI returns the first available external URL of an entity.
	URI(id int) string
}

// TypeSet is a sorted set of entity type names.
type TypeSet []string

// ParseTypeSet splits a TYPE column such as "person|artist".
func ParseTypeSet(s string) TypeSet {
	seen := make(map[string]struct{})
	var out TypeSet
	for _, t := range strings.Split(s, MultiValueDelim) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t string) bool {
	i := sort.SearchStrings(s, t)
	return i < len(s) && s[i] == t
}

// HasAny reports whether any of ts is in the set.
func (s TypeSet) HasAny(ts ...string) bool {
	for _, t := range ts {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Intersect returns the types present in both sets.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	var out TypeSet
	for _, t := range s {
		if o.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TypeSet) String() string {
	return strings.Join(s, MultiValueDelim)
}

// Entity is one knowledge base row.
type Entity struct {
	ID     int
	Types  TypeSet
	Fields map[string]string
}

// Field returns a field value or "".
func (e *Entity) Field(name string) string {
	if e == nil {
		return ""
	}
	return e.Fields[name]
}

// FieldList splits a multi-value field, dropping empty values.
func (e *Entity) FieldList(name string) []string {
	return splitMulti(e.Field(name))
}

func splitMulti(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, MultiValueDelim) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
