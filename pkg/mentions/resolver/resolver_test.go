package resolver

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/matcher"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
)

func entity(id int, types string, fields map[string]string) *kb.Entity {
	return &kb.Entity{ID: id, Types: kb.ParseTypeSet(types), Fields: fields}
}

func testKB() *kb.Memory {
	return kb.NewMemory("test-1", []*kb.Entity{
		entity(2, "location|settlement", map[string]string{
			kb.FieldName: "Paris", kb.FieldCountry: "FR", kb.FieldConfidence: "40",
			kb.FieldWikipediaURL: "https://en.wikipedia.org/wiki/Paris",
		}),
		entity(20, "person", map[string]string{
			kb.FieldName: "John", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(21, "person", map[string]string{
			kb.FieldName: "Smith", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(30, "location", map[string]string{
			kb.FieldName: "Springfield", kb.FieldCountry: "US", kb.FieldConfidence: "10",
		}),
		entity(31, "organisation", map[string]string{
			kb.FieldName: "Springfield", kb.FieldConfidence: "10",
		}),
		entity(40, "person", map[string]string{
			kb.FieldName: "Jane Doe", kb.FieldGender: "F", kb.FieldConfidence: "10",
		}),
		entity(50, "person", map[string]string{
			kb.FieldName: "John Smith", kb.FieldGender: "M", kb.FieldConfidence: "20",
		}),
		entity(60, "group", map[string]string{
			kb.FieldName: "Bands", kb.FieldConfidence: "n/a",
		}),
		entity(61, "group", map[string]string{
			kb.FieldName: "Bands", kb.FieldConfidence: "5",
		}),
		entity(70, "person", map[string]string{
			kb.FieldName: "George Washington", kb.FieldRoles: "president",
			kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(71, "location", map[string]string{
			kb.FieldName: "Washington", kb.FieldCountry: "US", kb.FieldConfidence: "50",
		}),
		entity(80, "person", map[string]string{
			kb.FieldName: "Karel Srp", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(81, "person", map[string]string{
			kb.FieldName: "František Staněk", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(82, "person", map[string]string{
			kb.FieldName: "František Stárek", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(83, "person", map[string]string{
			kb.FieldName: "Jaroslav Studený", kb.FieldGender: "M", kb.FieldConfidence: "10",
		}),
		entity(90, "artist", map[string]string{
			kb.FieldName: "Blondie", kb.FieldConfidence: "5",
		}),
		entity(91, "group", map[string]string{
			kb.FieldName: "Blondie", kb.FieldConfidence: "50",
		}),
	})
}

type fixture struct {
	base *kb.Memory
	dict *matcher.Dictionary
	lang lang.Language
}

func newFixture(t *testing.T, entries map[string][]int) *fixture {
	t.Helper()
	en, err := lang.Lookup("en")
	require.NoError(t, err)

	dict := matcher.NewDictionary()
	for fragment, ids := range entries {
		dict.Add(fragment, ids...)
	}
	dict.AddPronouns(en.Pronouns())
	return &fixture{base: testKB(), dict: dict, lang: en}
}

func (f *fixture) recognizer(t *testing.T, config Config) *Recognizer {
	t.Helper()
	r, err := NewRecognizer(config, Deps{KB: f.base, Language: f.lang, Matcher: f.dict})
	require.NoError(t, err)
	return r
}

func recognize(t *testing.T, r *Recognizer, text string, opts Options) []Line {
	t.Helper()
	res, err := r.Recognize(context.Background(), text, opts)
	require.NoError(t, err)
	return res.Lines
}

func TestNewRecognizer_RequiresDeps(t *testing.T) {
	_, err := NewRecognizer(DefaultConfig(), Deps{})
	require.Error(t, err)
	assert.True(t, pferrors.IsValidation(err))

	cfg := DefaultConfig()
	cfg.CopulaWindow = -1
	f := newFixture(t, nil)
	_, err = NewRecognizer(cfg, Deps{KB: f.base, Language: f.lang, Matcher: f.dict})
	assert.True(t, pferrors.IsValidation(err))
}

func TestRecognize_SingleCandidate(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	r := f.recognizer(t, DefaultConfig())

	res, err := r.Recognize(context.Background(), "We visited Paris today.", Options{})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, Line{Start: 11, End: 16, Kind: KindKB, Fragment: "Paris", Payload: "2"}, res.Lines[0])

	require.Len(t, res.Annotations, 1)
	m := res.Annotations[0].(*mentions.Mention)
	assert.False(t, m.PoorlyDisambiguated)
	assert.Equal(t, "11\t16\tkb\tParis\t2", res.String())
}

func TestRecognize_Modes(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	text := "We visited Paris today."

	lines := recognize(t, f.recognizer(t, DefaultConfig()), text, Options{Mode: ModeScore})
	require.Len(t, lines, 1)
	// static 40 plus a paragraph where every country mention is FR
	assert.Equal(t, "2 140", lines[0].Payload)

	lines = recognize(t, f.recognizer(t, DefaultConfig()), text, Options{Mode: ModeAll})
	require.Len(t, lines, 1)
	assert.Equal(t, KindKB, lines[0].Kind)
	assert.Equal(t, "2", lines[0].Payload)

	cfg := DefaultConfig()
	cfg.ShowURI = true
	lines = recognize(t, f.recognizer(t, cfg), text, Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, KindURI, lines[0].Kind)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Paris", lines[0].Payload)

	_, err := f.recognizer(t, DefaultConfig()).Recognize(context.Background(), text, Options{Mode: "verbose"})
	assert.True(t, pferrors.IsValidation(err))
}

func TestRecognize_Dates(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	lines := recognize(t, f.recognizer(t, DefaultConfig()), "We visited Paris on 2 March 1950.", Options{})

	require.Len(t, lines, 2)
	assert.Equal(t, "Paris", lines[0].Fragment)
	assert.Equal(t, Line{Start: 20, End: 32, Kind: KindDate, Fragment: "2 March 1950", Payload: "1950-03-02"}, lines[1])
}

func TestRecognize_Adjacency(t *testing.T) {
	f := newFixture(t, map[string][]int{"John": {20}, "Smith": {21}, "Paris": {2}})
	r := f.recognizer(t, DefaultConfig())

	// two persons separated only by a space are one unknown name
	assert.Empty(t, recognize(t, r, "We saw John Smith there.", Options{}))

	lines := recognize(t, r, "We saw John Paris there.", Options{})
	require.Len(t, lines, 2)
	assert.Equal(t, "20", lines[0].Payload)
	assert.Equal(t, "2", lines[1].Payload)
}

func TestRecognize_RepairFollowsStrongMention(t *testing.T) {
	f := newFixture(t, map[string][]int{"Springfield": {30, 31}})
	r := f.recognizer(t, DefaultConfig())

	res, err := r.Recognize(context.Background(), "Springfield grew.\n\nWe like Springfield's shops.", Options{})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	assert.Equal(t, 0, res.Lines[0].Start)
	assert.Equal(t, 11, res.Lines[0].End)
	assert.Equal(t, "31", res.Lines[0].Payload)
	assert.Equal(t, 27, res.Lines[1].Start)
	assert.Equal(t, 38, res.Lines[1].End)
	assert.Equal(t, "31", res.Lines[1].Payload)
}

func TestRecognize_NameCoreference(t *testing.T) {
	f := newFixture(t, map[string][]int{"John Smith": {50}, "Smith": {50}})
	lines := recognize(t, f.recognizer(t, DefaultConfig()), "John Smith spoke. Later Smith left.", Options{})

	require.Len(t, lines, 2)
	assert.Equal(t, Line{Start: 0, End: 10, Kind: KindKB, Fragment: "John Smith", Payload: "50"}, lines[0])
	assert.Equal(t, Line{Start: 24, End: 29, Kind: KindCoref, Fragment: "Smith", Payload: "50"}, lines[1])
}

func TestRecognize_PronounWithinParagraph(t *testing.T) {
	f := newFixture(t, map[string][]int{"Jane Doe": {40}})
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	r, err := NewRecognizer(DefaultConfig(), Deps{KB: f.base, Language: f.lang, Matcher: f.dict, Metrics: metrics})
	require.NoError(t, err)

	lines := recognize(t, r, "Jane Doe arrived. She left.", Options{})
	require.Len(t, lines, 2)
	assert.Equal(t, Line{Start: 18, End: 21, Kind: KindCoref, Fragment: "She", Payload: "40"}, lines[1])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CoreferencesTotal.WithLabelValues(corefPronoun)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DocumentsTotal.WithLabelValues("default", "ok")))

	// a paragraph break hides the antecedent
	lines = recognize(t, r, "Jane Doe arrived.\n\nShe left.", Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, "Jane Doe", lines[0].Fragment)
}

func TestRecognize_PronounLooksBackOnly(t *testing.T) {
	f := newFixture(t, map[string][]int{"John Smith": {50}, "Jane Doe": {40}, "George Washington": {70}})
	r := f.recognizer(t, DefaultConfig())

	tests := []struct {
		name string
		text string
		want []Line
	}{
		{
			name: "antecedent after the pronoun",
			text: "He arrived. John Smith left.",
			want: []Line{{Start: 12, End: 22, Kind: KindKB, Fragment: "John Smith", Payload: "50"}},
		},
		{
			name: "antecedent in a later paragraph",
			text: "She arrived.\n\nJane Doe left.",
			want: []Line{{Start: 14, End: 22, Kind: KindKB, Fragment: "Jane Doe", Payload: "40"}},
		},
		{
			name: "either gender takes the preceding person",
			text: "John Smith came. Who knows. George Washington left.",
			want: []Line{
				{Start: 0, End: 10, Kind: KindKB, Fragment: "John Smith", Payload: "50"},
				{Start: 17, End: 20, Kind: KindCoref, Fragment: "Who", Payload: "50"},
				{Start: 28, End: 45, Kind: KindKB, Fragment: "George Washington", Payload: "70"},
			},
		},
		{
			name: "either gender after a woman",
			text: "John Smith met Jane Doe. Who left?",
			want: []Line{
				{Start: 0, End: 10, Kind: KindKB, Fragment: "John Smith", Payload: "50"},
				{Start: 15, End: 23, Kind: KindKB, Fragment: "Jane Doe", Payload: "40"},
				{Start: 25, End: 28, Kind: KindCoref, Fragment: "Who", Payload: "50"},
			},
		},
		{
			name: "either gender skips the last man",
			text: "John Smith met George Washington. Who left?",
			want: []Line{
				{Start: 0, End: 10, Kind: KindKB, Fragment: "John Smith", Payload: "50"},
				{Start: 15, End: 32, Kind: KindKB, Fragment: "George Washington", Payload: "70"},
				{Start: 34, End: 37, Kind: KindCoref, Fragment: "Who", Payload: "50"},
			},
		},
		{
			name: "either gender with one man",
			text: "Jane Doe met John Smith. Who left?",
			want: []Line{
				{Start: 0, End: 8, Kind: KindKB, Fragment: "Jane Doe", Payload: "40"},
				{Start: 13, End: 23, Kind: KindKB, Fragment: "John Smith", Payload: "50"},
				{Start: 25, End: 28, Kind: KindCoref, Fragment: "Who", Payload: "50"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recognize(t, r, tt.text, Options{}))
		})
	}
}

func TestRecognize_ArtistOverGroup(t *testing.T) {
	f := newFixture(t, map[string][]int{"Blondie": {90, 91}})
	r := f.recognizer(t, DefaultConfig())

	// the group scores higher but shares the label with an artist
	lines := recognize(t, r, "We heard Blondie live.", Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 9, End: 16, Kind: KindKB, Fragment: "Blondie", Payload: "90"}, lines[0])
}

func TestRecognize_MergeOverlapping(t *testing.T) {
	text := "Karel Srp, Dr. Vladimír Staněk, František Stárek, Dr. Jaroslav Studený"
	f := newFixture(t, map[string][]int{
		"Karel Srp":         {80},
		"Staněk, František": {81},
		"František Stárek":  {82},
		"Jaroslav Studený":  {83},
	})

	tests := []struct {
		name  string
		merge bool
		want  []Line
	}{
		{
			name:  "merging",
			merge: true,
			want: []Line{
				{Start: 0, End: 9, Kind: KindKB, Fragment: "Karel Srp", Payload: "80"},
				{Start: 32, End: 48, Kind: KindKB, Fragment: "František Stárek", Payload: "82"},
				{Start: 54, End: 70, Kind: KindKB, Fragment: "Jaroslav Studený", Payload: "83"},
			},
		},
		{
			name:  "longest match",
			merge: false,
			want: []Line{
				{Start: 0, End: 9, Kind: KindKB, Fragment: "Karel Srp", Payload: "80"},
				{Start: 24, End: 41, Kind: KindKB, Fragment: "Staněk, František", Payload: "81"},
				{Start: 54, End: 70, Kind: KindKB, Fragment: "Jaroslav Studený", Payload: "83"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MergeOverlapping = tt.merge
			r, err := NewRecognizer(cfg, Deps{KB: f.base, Language: f.lang, Matcher: f.dict, ProperNouns: noProperNouns{}})
			require.NoError(t, err)

			// the inverted "Staněk, František" is cut to a senseless "Staněk"
			// when merging, which leaves no line behind
			assert.Equal(t, tt.want, recognize(t, r, text, Options{}))
		})
	}
}

func TestRecognize_Copula(t *testing.T) {
	f := newFixture(t, map[string][]int{"Washington": {70, 71}})
	r := f.recognizer(t, DefaultConfig())

	lines := recognize(t, r, "Washington was the first president of the country.", Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, "70", lines[0].Payload)

	lines = recognize(t, r, "Washington grew.", Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, "71", lines[0].Payload)
}

func TestRecognize_InvalidScoreFormat(t *testing.T) {
	f := newFixture(t, map[string][]int{"Bands": {60, 61}})
	r := f.recognizer(t, DefaultConfig())

	_, err := r.Recognize(context.Background(), "I like Bands a lot.", Options{})
	require.Error(t, err)
	assert.True(t, pferrors.IsInvalidScoreFormat(err))

	var pe *pferrors.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pferrors.CodeInvalidScoreFormat, pe.Code)

	var se *pferrors.ScoreFormatError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 60, se.EntityID)
	assert.Equal(t, "test-1", se.KBVersion)
}

type stubNames struct {
	records []matcher.Record
	err     error
}

func (s stubNames) Recognize(context.Context, string, []matcher.Record) ([]matcher.Record, error) {
	return s.records, s.err
}

type noProperNouns struct{}

func (noProperNouns) Find(string) []mentions.Span { return nil }

func TestRecognize_UnknownNames(t *testing.T) {
	f := newFixture(t, map[string][]int{"Novák": {20}})
	r := f.recognizer(t, DefaultConfig())

	lines := recognize(t, r, "We saw Jan Nováček there.", Options{FindNames: true})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 7, End: 18, Kind: KindName, Fragment: "Jan Nováček", Payload: "-1"}, lines[0])

	// the entity covers only part of the proper noun and gives way to the name
	lines = recognize(t, r, "We saw Jan Novák there.", Options{FindNames: true})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 7, End: 16, Kind: KindName, Fragment: "Jan Novák", Payload: "-1"}, lines[0])

	assert.Empty(t, recognize(t, r, "We saw Jan Novák there.", Options{}))
}

func TestRecognize_NameAbsorbsEntities(t *testing.T) {
	f := newFixture(t, map[string][]int{"Novák": {20}})
	r, err := NewRecognizer(DefaultConfig(), Deps{
		KB:          f.base,
		Language:    f.lang,
		Matcher:     f.dict,
		ProperNouns: noProperNouns{},
		Names:       stubNames{records: []matcher.Record{{Start: 7, End: 16, Flag: matcher.FlagFull}}},
	})
	require.NoError(t, err)

	lines := recognize(t, r, "We saw Jan Novák there.", Options{FindNames: true})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 7, End: 16, Kind: KindName, Fragment: "Jan Novák", Payload: "20"}, lines[0])

	lines = recognize(t, r, "We saw Jan Novák there.", Options{})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 11, End: 16, Kind: KindKB, Fragment: "Novák", Payload: "20"}, lines[0])
}

func TestRecognize_NameRecognizerFailure(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	r, err := NewRecognizer(DefaultConfig(), Deps{
		KB:       f.base,
		Language: f.lang,
		Matcher:  f.dict,
		Names:    stubNames{err: assert.AnError},
	})
	require.NoError(t, err)

	// a failing recognizer leaves the entities alone
	lines := recognize(t, r, "We visited Paris today.", Options{FindNames: true})
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].Payload)
}

func TestRecognize_Heartbeat(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	r := f.recognizer(t, DefaultConfig())

	var passes []string
	r.SetHeartbeat(func(pass string) { passes = append(passes, pass) })
	recognize(t, r, "We visited Paris today.", Options{})

	require.NotEmpty(t, passes)
	assert.Equal(t, observability.PassIngest, passes[0])
	assert.Equal(t, observability.PassFilter, passes[len(passes)-1])
	assert.NotContains(t, passes, observability.PassUnknownNames)
}

func TestRecognize_Cancelled(t *testing.T) {
	f := newFixture(t, map[string][]int{"Paris": {2}})
	r := f.recognizer(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Recognize(ctx, "We visited Paris today.", Options{})
	require.Error(t, err)

	var pe *pferrors.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pferrors.CodeContextCancelled, pe.Code)
	assert.Equal(t, observability.PassIngest, pe.Pass)
}

func TestRecognize_RegistryConsistent(t *testing.T) {
	f := newFixture(t, map[string][]int{"Jane Doe": {40}, "Springfield": {30, 31}, "Paris": {2}})
	r := f.recognizer(t, DefaultConfig())

	d := newDocument(r, "Jane Doe left Springfield for Paris. She liked Springfield's shops.", Options{})
	_, _, err := r.run(context.Background(), d)
	require.NoError(t, err)
	require.NoError(t, d.registry.Check())

	for _, m := range d.registry.Unresolved() {
		assert.False(t, m.Preferred().Kind() == mentions.SenseKBID, m.String())
	}
}

func TestIngest_MalformedRecord(t *testing.T) {
	f := newFixture(t, nil)
	r := f.recognizer(t, DefaultConfig())
	d := newDocument(r, "short", Options{})

	_, err := d.ingest([]matcher.Record{{IDs: []int{2}, Start: 2, End: 40, Flag: matcher.FlagFull}})
	assert.True(t, pferrors.IsMalformedRecord(err))
}

func TestIngest_PartialSensesLimitedToDocument(t *testing.T) {
	f := newFixture(t, nil)
	r := f.recognizer(t, DefaultConfig())
	d := newDocument(r, "John Smith and Smith", Options{})

	ms, err := d.ingest([]matcher.Record{
		{IDs: []int{50}, Start: 0, End: 10, Flag: matcher.FlagFull},
		{IDs: []int{21}, Start: 15, End: 20, Flag: matcher.FlagFull},
	})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	// "smith" names 21 and 50, both carried by some record
	assert.Equal(t, []int{21, 50}, ms[1].PartialMatchSenses)
	assert.Empty(t, ms[0].PartialMatchSenses)
}
