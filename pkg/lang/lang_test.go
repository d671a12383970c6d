package lang

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

type fakeEnv struct {
	source string
	left   string
	right  string
	types  map[int]string
}

func (f fakeEnv) Source() string                { return f.source }
func (f fakeEnv) LeftContext(s string) bool     { return strings.HasSuffix(f.left, s) }
func (f fakeEnv) RightContext(s string) bool    { return strings.HasPrefix(f.right, s) }
func (f fakeEnv) HasType(id int, t string) bool { return strings.Contains(f.types[id], t) }

func TestLookup(t *testing.T) {
	en, err := Lookup("EN")
	require.NoError(t, err)
	assert.Equal(t, "en", en.Code())

	cs, err := Lookup("cz")
	require.NoError(t, err)
	assert.Equal(t, "cs", cs.Code())

	_, err = Lookup("xx")
	assert.True(t, pferrors.IsUnknownLanguage(err))
	assert.Contains(t, Supported(), "en")
}

func TestEnglish_PronounClasses(t *testing.T) {
	en, _ := Lookup("en")

	g, ok := en.PronounClass("He")
	require.True(t, ok)
	assert.Equal(t, GenderMale, g)

	g, _ = en.PronounClass("whom")
	assert.True(t, g.Has(GenderMale))
	assert.True(t, g.Has(GenderFemale))

	_, ok = en.PronounClass("Paris")
	assert.False(t, ok)
	assert.Contains(t, en.Pronouns(), "herself")
}

func TestEnglish_FilterSenses(t *testing.T) {
	en, _ := Lookup("en")
	types := map[int]string{1: "location", 2: "person", 3: "organisation"}

	tests := []struct {
		name string
		env  fakeEnv
		want []int
	}{
		{"no rule", fakeEnv{source: "Paris", right: " is", types: types}, []int{1, 2, 3}},
		{"possessive", fakeEnv{source: "Paris", right: "'s mayor", types: types}, []int{2, 3}},
		{"definite article", fakeEnv{source: "The Hague", types: types}, []int{2, 3}},
		{"into", fakeEnv{source: "Paris", left: "went into ", types: types}, []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, en.FilterSenses([]int{1, 2, 3}, tt.env))
		})
	}
}

func TestEnglish_SkipExistentialThere(t *testing.T) {
	en, _ := Lookup("en")
	assert.True(t, en.SkipPronoun(fakeEnv{source: "There", right: " was a storm"}))
	assert.False(t, en.SkipPronoun(fakeEnv{source: "there", right: " was a storm"}))
	assert.False(t, en.SkipPronoun(fakeEnv{source: "There", right: ", he said"}))
}

func TestCzech_FilterSenses(t *testing.T) {
	cs, _ := Lookup("cs")
	types := map[int]string{1: "event", 2: "person"}

	got := cs.FilterSenses([]int{1, 2}, fakeEnv{left: "se to stalo během ", types: types})
	assert.Equal(t, []int{1}, got)

	got = cs.FilterSenses([]int{1, 2}, fakeEnv{left: "po ", types: types})
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, []string{" byl ", " byla ", " je "}, cs.CopulaVerbs())
}
