package resolver

import (
	"fmt"

	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
)

// HeartbeatFunc is invoked before every pipeline pass. The argument names the pass.
type HeartbeatFunc func(pass string)

// Mode selects which annotations are kept and how they are printed.
type Mode string

const (
	// ModeDefault keeps resolved mentions, names and dates.
	ModeDefault Mode = "default"
	// ModeAll clears resolved senses and prints every candidate.
	ModeAll Mode = "all"
	// ModeScore prints every candidate with its combined score.
	ModeScore Mode = "score"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeDefault, ModeAll, ModeScore:
		return true
	}
	return false
}

// DefaultCopulaWindow bounds, in codepoints, the text searched for a copula verb.
const DefaultCopulaWindow = 200

// Config holds the document-independent recognizer settings.
type Config struct {
	// Lowercase runs the matcher on a lowercased copy of the text.
	Lowercase bool `yaml:"lowercase"`
	// RemoveAccent strips accents from the text before anything else.
	RemoveAccent bool `yaml:"remove_accent"`
	// SplitIntervals reports both ends of a date interval as separate dates.
	SplitIntervals bool `yaml:"split_intervals"`
	// MergeOverlapping merges overlapping matches instead of keeping the longest.
	MergeOverlapping bool `yaml:"merge_overlapping"`
	// ShowURI prints URIs instead of knowledge base ids.
	ShowURI bool `yaml:"show_uri"`
	// CopulaWindow bounds the copula search after a mention.
	CopulaWindow int `yaml:"copula_window"`

	Heartbeat HeartbeatFunc `yaml:"-"`
}

// DefaultConfig returns the default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		SplitIntervals: true,
		CopulaWindow:   DefaultCopulaWindow,
	}
}

// Validate fills unset values and rejects invalid ones.
func (c *Config) Validate() error {
	if c.CopulaWindow == 0 {
		c.CopulaWindow = DefaultCopulaWindow
	}
	if c.CopulaWindow < 0 {
		return fmt.Errorf("%w: copula window must be positive, got %d", pferrors.ErrValidation, c.CopulaWindow)
	}
	return nil
}

// Options select the output of one Recognize call.
type Options struct {
	DocumentID string
	Mode       Mode
	// FindNames adds unknown names from the secondary recognizer.
	FindNames bool
}
