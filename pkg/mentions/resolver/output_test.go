package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

func TestParseLine(t *testing.T) {
	line := Line{Start: 11, End: 16, Kind: KindKB, Fragment: "Paris", Payload: "2 40;3 12.5"}
	got, err := ParseLine(line.String())
	require.NoError(t, err)
	assert.Equal(t, line, got)

	for _, bad := range []string{"", "1\t2\tkb\tParis", "x\t2\tkb\tParis\t2", "1\ty\tkb\tParis\t2"} {
		_, err := ParseLine(bad)
		assert.True(t, pferrors.IsMalformedRecord(err), "%q", bad)
	}
}

func TestFormatter_Mention(t *testing.T) {
	base := testKB()
	text := textutil.NewText("Paris\nand Springfield or Smith")
	reg := mentions.NewRegistry()

	paris := mention(text, 0, 9, 2)
	reg.Register(paris)
	reg.SetPreferredSense(paris, mentions.KBID(2))

	spring := mention(text, 10, 21, 31, 30)
	spring.SetCandidates(spring.Senses)
	spring.Candidates[0].Static, spring.Candidates[1].Static = 10, 10
	spring.Candidates[1].Context = 2.5

	smith := mention(text, 25, 30, 21)
	smith.IsCoreference = true
	smith.PartialMatchSenses = []int{50, 21}

	f := formatter{kb: base, text: text}
	assert.Equal(t, Line{Start: 0, End: 9, Kind: KindKB, Fragment: "Paris and", Payload: "2"}, f.mention(paris))
	assert.Equal(t, "30;31", f.mention(spring).Payload)
	assert.Equal(t, Line{Start: 25, End: 30, Kind: KindCoref, Fragment: "Smith", Payload: "21;50"}, f.mention(smith))

	f.scores = true
	assert.Equal(t, "30 10;31 12.5", f.mention(spring).Payload)

	f.uri = true
	assert.Equal(t, KindURI, f.mention(paris).Kind)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Paris", f.mention(paris).Payload)
	assert.Equal(t, KindURICoref, f.mention(smith).Kind)
	assert.Equal(t, " 10| 12.5", f.mention(spring).Payload)
}

func TestFormatter_Temporal(t *testing.T) {
	text := textutil.NewText("from 1914 to 1918")
	interval := mentions.NewInterval(0, "from 1914 to 1918", mentions.ISODate{Year: 1914}, mentions.ISODate{Year: 1918}, 80)

	lines := formatter{text: text}.lines([]mentions.Annotation{interval})
	require.Len(t, lines, 1)
	assert.Equal(t, Line{Start: 0, End: 17, Kind: KindInterval, Fragment: "from 1914 to 1918", Payload: "1914-00-00 -- 1918-00-00"}, lines[0])
}
