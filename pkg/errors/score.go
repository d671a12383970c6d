package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ScoreFormatError reports a knowledge base confidence value that is not a number.
// It carries the full row so the caller can decide whether to skip the entity or abort.
type ScoreFormatError struct {
	EntityID  int
	Raw       string
	Row       map[string]string
	KBVersion string
}

func (e *ScoreFormatError) Error() string {
	return fmt.Sprintf("invalid score format %q for entity %d (kb version %s): %s",
		e.Raw, e.EntityID, e.KBVersion, e.RowDump())
}

func (e *ScoreFormatError) Unwrap() error {
	return ErrInvalidScoreFormat
}

// RowDump renders the offending row as sorted key=value pairs.
func (e *ScoreFormatError) RowDump() string {
	keys := make([]string, 0, len(e.Row))
	for k := range e.Row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Row[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
