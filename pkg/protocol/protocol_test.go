package protocol

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
)

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, text string, opts resolver.Options) (*resolver.Result, error) {
	args := m.Called(ctx, text, opts)
	res, _ := args.Get(0).(*resolver.Result)
	return res, args.Error(1)
}

func withMode(mode resolver.Mode, names bool) interface{} {
	return mock.MatchedBy(func(o resolver.Options) bool {
		return o.Mode == mode && o.FindNames == names && o.DocumentID != ""
	})
}

func result(lines ...resolver.Line) *resolver.Result {
	return &resolver.Result{Lines: lines}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		line  string
		ok    bool
		mode  resolver.Mode
		names bool
		end   bool
	}{
		{line: "NER_NEW_FILE", ok: true, mode: resolver.ModeDefault},
		{line: "NER_END", ok: true, mode: resolver.ModeDefault, end: true},
		{line: "NER_NEW_FILE_ALL", ok: true, mode: resolver.ModeAll},
		{line: "NER_END_SCORE", ok: true, mode: resolver.ModeScore, end: true},
		{line: "NER_NEW_FILE_NAMES", ok: true, mode: resolver.ModeDefault, names: true},
		{line: "NER_END_NAMES", ok: true, mode: resolver.ModeDefault, names: true, end: true},
		{line: "ner_end"},
		{line: "NER_END "},
		{line: "Paris"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			tok, ok := ParseToken(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.line, tok.Name)
			assert.Equal(t, tt.mode, tok.Opts.Mode)
			assert.Equal(t, tt.names, tok.Opts.FindNames)
			assert.Equal(t, tt.end, tok.End)
		})
	}
}

func TestSession_Serve(t *testing.T) {
	rec := new(mockRecognizer)
	paris := resolver.Line{Start: 11, End: 16, Kind: resolver.KindKB, Fragment: "Paris", Payload: "2"}
	rec.On("Recognize", mock.Anything, "We visited Paris.\nIt rained.  \n", withMode(resolver.ModeDefault, false)).
		Return(result(paris), nil).Once()
	rec.On("Recognize", mock.Anything, "Nothing here.\n", withMode(resolver.ModeScore, false)).
		Return(result(), nil).Once()

	in := strings.Join([]string{
		"We visited Paris.",
		"It rained.  ",
		"NER_NEW_FILE\r",
		"Nothing here.",
		"NER_END_SCORE",
		"never read",
		"NER_END",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, NewSession(rec, nil).Serve(context.Background(), strings.NewReader(in), &out))

	assert.Equal(t, "11\t16\tkb\tParis\t2\nNER_NEW_FILE\nNER_END_SCORE\n", out.String())
	rec.AssertExpectations(t)
}

func TestSession_KeepsLineContent(t *testing.T) {
	rec := new(mockRecognizer)
	rec.On("Recognize", mock.Anything, "\tParis \n  \nLyon\t\n", withMode(resolver.ModeDefault, false)).
		Return(result(), nil).Once()

	var out bytes.Buffer
	in := "\tParis \r\n  \nLyon\t\nNER_END  \n"
	require.NoError(t, NewSession(rec, nil).Serve(context.Background(), strings.NewReader(in), &out))

	// a token followed by blanks still ends the document
	assert.Equal(t, "NER_END\n", out.String())
	rec.AssertExpectations(t)
}

func TestSession_SurfacedErrorKeepsSession(t *testing.T) {
	rec := new(mockRecognizer)
	scoreErr := pferrors.ClassifyError(fmt.Errorf("score: %w", &pferrors.ScoreFormatError{EntityID: 7, Raw: "n/a"}), "disambiguate")
	rec.On("Recognize", mock.Anything, "bad\n", withMode(resolver.ModeAll, false)).Return(nil, scoreErr).Once()
	rec.On("Recognize", mock.Anything, "good\n", withMode(resolver.ModeDefault, true)).Return(result(), nil).Once()

	var out bytes.Buffer
	err := NewSession(rec, nil).Serve(context.Background(),
		strings.NewReader("bad\nNER_NEW_FILE_ALL\ngood\nNER_END_NAMES\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "NER_NEW_FILE_ALL\nNER_END_NAMES\n", out.String())
	rec.AssertExpectations(t)
}

func TestSession_FatalErrorStops(t *testing.T) {
	rec := new(mockRecognizer)
	fatal := pferrors.ClassifyError(fmt.Errorf("record: %w", pferrors.ErrMalformedRecord), "ingest")
	rec.On("Recognize", mock.Anything, "x\n", mock.Anything).Return(nil, fatal).Once()

	var out bytes.Buffer
	err := NewSession(rec, nil).Serve(context.Background(), strings.NewReader("x\nNER_NEW_FILE\ny\nNER_END\n"), &out)
	require.Error(t, err)
	assert.True(t, pferrors.IsMalformedRecord(err))
	assert.Empty(t, out.String())
	rec.AssertNumberOfCalls(t, "Recognize", 1)
}

func TestSession_EndOfInput(t *testing.T) {
	rec := new(mockRecognizer)
	var out bytes.Buffer
	require.NoError(t, NewSession(rec, nil).Serve(context.Background(), strings.NewReader("dangling text"), &out))
	assert.Empty(t, out.String())
	rec.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestSession_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewSession(new(mockRecognizer), nil).Serve(ctx, strings.NewReader("NER_END\n"), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
