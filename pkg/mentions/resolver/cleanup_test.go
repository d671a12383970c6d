package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

func mention(text *textutil.Text, start, end int, senses ...int) *mentions.Mention {
	return mentions.NewMention(start, end, text.Slice(start, end), senses)
}

func spans(ms []*mentions.Mention) []mentions.Span {
	out := make([]mentions.Span, len(ms))
	for i, m := range ms {
		out[i] = m.Span
	}
	return out
}

func TestKeepLongest(t *testing.T) {
	text := textutil.NewText("New York City Hall is old")
	ms := []*mentions.Mention{
		mention(text, 0, 13, 1),
		mention(text, 0, 8, 2),
		mention(text, 4, 8, 3),
		mention(text, 9, 18, 4),
		mention(text, 14, 18, 5),
		mention(text, 22, 25, 6),
	}

	kept := KeepLongest(ms)
	assert.Equal(t, []mentions.Span{{Start: 0, End: 13}, {Start: 14, End: 18}, {Start: 22, End: 25}}, spans(kept))

	for i := range kept {
		for j := i + 1; j < len(kept); j++ {
			assert.False(t, kept[i].Overlaps(kept[j].Span), "%s overlaps %s", kept[i], kept[j])
		}
	}
	assert.Equal(t, kept, KeepLongest(kept))
}

func TestMergeOverlapping_Composite(t *testing.T) {
	text := textutil.NewText("at Charles Bridge Museum")
	a := mention(text, 3, 17, 1)
	b := mention(text, 11, 24, 2)
	inner := mention(text, 11, 17, 3)

	out := MergeOverlapping(text, []*mentions.Mention{a, inner, b})
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, mentions.Span{Start: 3, End: 24}, c.Span)
	assert.Equal(t, "Charles Bridge Museum", c.Source)
	assert.Equal(t, []int{1, 2}, c.Senses)
	assert.Equal(t, []*mentions.Mention{a, b}, c.Parents)
	// the first parent is not widened in place
	assert.Equal(t, 17, a.End)
}

func TestMergeOverlapping_Comma(t *testing.T) {
	text := textutil.NewText("Signed: Staněk, František Stárek.")
	inverted := mention(text, 8, 25, 1)
	name := mention(text, 16, 32, 2)
	require.Equal(t, "Staněk, František", inverted.Source)
	require.Equal(t, "František Stárek", name.Source)

	out := MergeOverlapping(text, []*mentions.Mention{inverted, name})
	require.Len(t, out, 2)

	assert.Equal(t, "Staněk", out[0].Source)
	assert.Equal(t, mentions.Span{Start: 8, End: 14}, out[0].Span)
	assert.Empty(t, out[0].Senses)

	assert.Same(t, name, out[1])
	assert.Nil(t, out[1].Parents)
	assert.Equal(t, []int{2}, out[1].Senses)
}

func TestMergeOverlapping_NewMentionWithComma(t *testing.T) {
	text := textutil.NewText("Praha, Brno a Ostrava")
	a := mention(text, 0, 5, 1)
	b := mention(text, 3, 10, 2)

	out := MergeOverlapping(text, []*mentions.Mention{a, b})
	require.Len(t, out, 1)
	assert.Same(t, a, out[0])
}

func TestFilterProperNouns(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		ms    [][2]int
		nouns []mentions.Span
		cover [][2]int
		want  []mentions.Span
	}{
		{
			name:  "entity covers the proper noun",
			text:  "We met Paul Verlaine there",
			ms:    [][2]int{{7, 20}},
			nouns: []mentions.Span{{Start: 7, End: 20}},
			want:  []mentions.Span{{Start: 7, End: 20}},
		},
		{
			name:  "two entities leave a solitary space",
			text:  "We met Paul Verlaine there",
			ms:    [][2]int{{7, 11}, {12, 20}},
			nouns: []mentions.Span{{Start: 7, End: 20}},
			want:  []mentions.Span{{Start: 7, End: 11}, {Start: 12, End: 20}},
		},
		{
			name:  "entity is part of a longer name",
			text:  "We met Karel Havlicek Borovsky",
			ms:    [][2]int{{22, 30}},
			nouns: []mentions.Span{{Start: 7, End: 30}},
		},
		{
			name:  "nationality covers the rest",
			text:  "The Canadian Paul Verlaine",
			ms:    [][2]int{{13, 26}},
			nouns: []mentions.Span{{Start: 4, End: 26}},
			cover: [][2]int{{4, 12}},
			want:  []mentions.Span{{Start: 13, End: 26}},
		},
		{
			name: "no proper noun",
			text: "We met paul there",
			ms:   [][2]int{{7, 11}},
			want: []mentions.Span{{Start: 7, End: 11}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := textutil.NewText(tt.text)
			var ms, cover []*mentions.Mention
			for _, s := range tt.ms {
				ms = append(ms, mention(text, s[0], s[1], 1))
			}
			for _, s := range tt.cover {
				cover = append(cover, mention(text, s[0], s[1]))
			}
			got := filterProperNouns(text, ms, tt.nouns, cover...)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, spans(got))
		})
	}
}

func TestRemoveNearby(t *testing.T) {
	f := newFixture(t, nil)
	r := f.recognizer(t, DefaultConfig())
	d := newDocument(r, "We saw John  Smith, John Paris and he left", Options{})

	john := mention(d.text, 7, 11, 20)
	smith := mention(d.text, 13, 18, 21)
	john2 := mention(d.text, 20, 24, 20)
	paris := mention(d.text, 25, 30, 2)
	he := mention(d.text, 35, 37)
	ms := []*mentions.Mention{john, smith, john2, paris, he}
	for _, m := range []*mentions.Mention{john, smith, john2, paris} {
		d.registry.Register(m)
		d.setSense(m, mentions.KBID(m.Senses[0]))
	}
	d.registry.Register(he)
	d.setSense(he, mentions.AliasOf(john2))

	kept := d.removeNearby(ms)
	assert.Equal(t, []*mentions.Mention{john2, paris, he}, kept)
	assert.True(t, john.NextToSameType)
	assert.True(t, smith.NextToSameType)
}
