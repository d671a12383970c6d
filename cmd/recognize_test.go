package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
)

func TestNewRecognizeCommand(t *testing.T) {
	cmd := NewRecognizeCommand(createTestDeps(config.DefaultConfig()))

	assert.Equal(t, "recognize [file]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Example)

	for _, name := range []string{"all", "score", "names", "uri", "lowercase", "remove-accent", "merge-overlapping", "lang"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestRecognizeOptions_Apply(t *testing.T) {
	t.Run("all and score conflict", func(t *testing.T) {
		cmd := NewRecognizeCommand(createTestDeps(config.DefaultConfig()))
		opts := &recognizeOptions{all: true, score: true}
		err := opts.apply(cmd, config.DefaultConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("flags overlay config", func(t *testing.T) {
		cmd := NewRecognizeCommand(createTestDeps(config.DefaultConfig()))
		require.NoError(t, cmd.Flags().Set("merge-overlapping", "true"))
		opts := &recognizeOptions{uri: true, lowercase: true, removeAccent: true, merge: true, language: "cs"}
		cfg := config.DefaultConfig()
		require.NoError(t, opts.apply(cmd, cfg))

		assert.True(t, cfg.ShowURI)
		assert.True(t, cfg.Lowercase)
		assert.True(t, cfg.RemoveAccent)
		assert.True(t, cfg.MergeOverlapping)
		assert.Equal(t, "cs", cfg.Language)
	})

	t.Run("unknown language", func(t *testing.T) {
		cmd := NewRecognizeCommand(createTestDeps(config.DefaultConfig()))
		opts := &recognizeOptions{language: "xx"}
		assert.Error(t, opts.apply(cmd, config.DefaultConfig()))
	})
}

func TestRecognizeOptions_ResolverOptions(t *testing.T) {
	assert.Equal(t, resolver.ModeDefault, (&recognizeOptions{}).resolverOptions().Mode)
	assert.Equal(t, resolver.ModeAll, (&recognizeOptions{all: true}).resolverOptions().Mode)
	assert.Equal(t, resolver.ModeScore, (&recognizeOptions{score: true}).resolverOptions().Mode)
	assert.True(t, (&recognizeOptions{names: true}).resolverOptions().FindNames)
}

func TestRecognize_Stdin(t *testing.T) {
	cfg := writeTestFiles(t)
	cmd := NewRecognizeCommand(createTestDeps(cfg))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("  We visited Paris today.\n"))
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "11\t16\tkb\tParis\t2\n", out.String())
}

func TestRecognize_File(t *testing.T) {
	cfg := writeTestFiles(t)
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("Paris is big."), 0o644))

	cmd := NewRecognizeCommand(createTestDeps(cfg))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "0\t5\tkb\tParis\t2\n", out.String())
}

func TestRecognize_Lowercase(t *testing.T) {
	text := "We met JOHN SMITH in PARIS."

	tests := []struct {
		name      string
		args      []string
		lowerDict string
		want      string
	}{
		{
			name: "case sensitive",
			args: []string{},
			want: "",
		},
		{
			name: "dictionary lowercased on load",
			args: []string{"--lowercase"},
			want: "7\t17\tkb\tJOHN SMITH\t50\n21\t26\tkb\tPARIS\t2\n",
		},
		{
			name:      "separate lowercase dictionary",
			args:      []string{"--lowercase"},
			lowerDict: "paris\t2\n",
			want:      "21\t26\tkb\tPARIS\t2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeTestFiles(t)
			if tt.lowerDict != "" {
				require.NoError(t, os.WriteFile(filepath.Join(cfg.InputDir, "dict-lower.tsv"), []byte(tt.lowerDict), 0o644))
				cfg.Matcher.LowercaseDictionary = "dict-lower.tsv"
			}
			cmd := NewRecognizeCommand(createTestDeps(cfg))

			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetIn(strings.NewReader(text))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRecognize_NoMatches(t *testing.T) {
	cfg := writeTestFiles(t)
	cmd := NewRecognizeCommand(createTestDeps(cfg))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("nothing to see here"))
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, out.String())
}

func TestRecognize_RuntimeError(t *testing.T) {
	deps := createTestDeps(config.DefaultConfig())
	deps.NewRuntime = func(context.Context, *config.Config, logging.Logger) (*Runtime, error) {
		return nil, errors.New("kb down")
	}
	cmd := NewRecognizeCommand(deps)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("Paris"))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kb down")
}
