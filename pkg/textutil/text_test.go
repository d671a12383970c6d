package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_SliceIsCodepointBased(t *testing.T) {
	txt := NewText("Staněk, František")

	assert.Equal(t, 17, txt.Len())
	assert.Equal(t, "Staněk", txt.Slice(0, 6))
	assert.Equal(t, "František", txt.Slice(8, 17))
	assert.Equal(t, "", txt.Slice(5, 5))
	assert.Equal(t, "František", txt.Slice(8, 99))
	assert.Equal(t, 'ě', txt.At(4))
	assert.Equal(t, rune(0), txt.At(-1))
}

func TestRemoveAccents_PreservesLength(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Staněk", "Stanek"},
		{"Jaroslav Studený", "Jaroslav Studeny"},
		{"během", "behem"},
		{"plain ascii", "plain ascii"},
		{"ß", "ß"},
	}
	for _, tt := range tests {
		got := RemoveAccents(tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, len([]rune(tt.in)), len([]rune(got)))
	}
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, "frantisek starek", FoldName("František STÁREK"))
	assert.True(t, ContainsFolded("Dr. Vladimír Staněk", "STANEK"))
	assert.False(t, ContainsFolded("Karel Srp", "Stanek"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a b c\td", Sanitize("a;b\x01c\td"))
	assert.Equal(t, "x\ny", Sanitize("x\ny"))
}

func TestParagraphStarts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{"single paragraph", "one line\nnext line", []int{0}},
		{"blank line", "first\n\nsecond", []int{0, 7}},
		{"crlf pairs", "a\r\n\r\nb", []int{0, 5}},
		{"three newlines", "a\n\n\nb", []int{0, 4}},
		{"bare cr", "a\r\rb", []int{0, 3}},
		{"crlf then lf", "a\r\n\nb", []int{0, 4}},
		{"two breaks", "a\n\nb\n\nc", []int{0, 3, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParagraphStarts(NewText(tt.in)))
		})
	}
}

func TestIsTitle(t *testing.T) {
	assert.True(t, IsTitle("Dr."))
	assert.True(t, IsTitle("dr"))
	assert.True(t, IsTitle("Prof."))
	assert.False(t, IsTitle("Karel"))
}

func TestRuneOffsets(t *testing.T) {
	s := "aě b"
	idx := RuneOffsets(s)
	assert.Equal(t, 0, idx[0])
	assert.Equal(t, 1, idx[1])
	assert.Equal(t, 2, idx[3])
	assert.Equal(t, 3, idx[4])
	assert.Equal(t, 4, idx[len(s)])
}
