// Package lang provides the per-language capability used by the resolver:
// pronoun gender classes, copula verbs, proper-noun prepositions and the
// language-specific sense filters.
package lang

import (
	"fmt"
	"sort"
	"strings"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// GenderClass is the referent class of a pronoun: "M", "F", "MF" or "L".
type GenderClass string

const (
	GenderMale     GenderClass = "M"
	GenderFemale   GenderClass = "F"
	GenderAny      GenderClass = "MF"
	GenderLocation GenderClass = "L"
)

// Has reports whether the class admits the given single-letter gender.
func (g GenderClass) Has(gender GenderClass) bool {
	return strings.Contains(string(g), string(gender))
}

// SenseEnv is what a sense filter may inspect about a mention.
type SenseEnv interface {
	// Source is the mention fragment.
	Source() string
	// LeftContext reports whether the text immediately before the mention equals s.
	LeftContext(s string) bool
	// RightContext reports whether the text immediately after the mention equals s.
	RightContext(s string) bool
	// HasType reports whether a knowledge base id carries the given type.
	HasType(id int, typ string) bool
}

// Language is implemented once per supported language.
type Language interface {
	Code() string
	// PronounClass returns the gender class of a lowercase pronoun.
	PronounClass(word string) (GenderClass, bool)
	// Pronouns lists every pronoun word, sorted.
	Pronouns() []string
	// CopulaVerbs are space-delimited verbs linking a subject to its complement.
	CopulaVerbs() []string
	// ProperNounPreps are lowercase words allowed inside a proper noun.
	ProperNounPreps() []string
	// FilterSenses drops ids that the language rules disqualify for the mention.
	FilterSenses(senses []int, env SenseEnv) []int
	// SkipPronoun reports pronoun occurrences that must not be resolved.
	SkipPronoun(env SenseEnv) bool
}

// table is the data-driven part shared by the concrete languages.
type table struct {
	code     string
	pronouns map[string]GenderClass
	verbs    []string
	preps    []string
}

func (t *table) Code() string { return t.code }

func (t *table) PronounClass(word string) (GenderClass, bool) {
	g, ok := t.pronouns[strings.ToLower(word)]
	return g, ok
}

func (t *table) Pronouns() []string {
	words := make([]string, 0, len(t.pronouns))
	for w := range t.pronouns {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

func (t *table) CopulaVerbs() []string { return t.verbs }

func (t *table) ProperNounPreps() []string { return t.preps }

func (t *table) SkipPronoun(SenseEnv) bool { return false }

var registry = map[string]func() Language{
	"en": func() Language { return newEnglish() },
	"cs": func() Language { return newCzech() },
	"cz": func() Language { return newCzech() },
}

// Lookup returns the implementation for a language code.
func Lookup(code string) (Language, error) {
	ctor, ok := registry[strings.ToLower(code)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pferrors.ErrUnknownLanguage, code)
	}
	return ctor(), nil
}

// Supported lists the registered language codes.
func Supported() []string {
	codes := make([]string, 0, len(registry))
	for c := range registry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func filter(senses []int, keep func(int) bool) []int {
	out := senses[:0:0]
	for _, s := range senses {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}
