package matcher

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// External runs a matcher binary that reads text on stdin and writes the
// wire format on stdout.
type External struct {
	Command string
	Args    []string
}

// NewExternal creates an external matcher from a command line.
func NewExternal(commandLine string) (*External, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty matcher command")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("matcher command not found: %w", err)
	}
	return &External{Command: fields[0], Args: fields[1:]}, nil
}

func (e *External) Lookup(ctx context.Context, text string) ([]Record, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("matcher %s failed: %w: %s", e.Command, err, strings.TrimSpace(stderr.String()))
	}
	return ParseOutput(stdout.String())
}
