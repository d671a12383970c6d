// Package cmd provides CLI commands for the penf-ner tool.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// CommandDeps holds the dependencies shared by the commands.
type CommandDeps struct {
	// LoadConfig returns the configuration with global flags applied.
	LoadConfig func() (*config.Config, error)
	// Logger returns the process logger.
	Logger func() logging.Logger
	// NewRuntime connects the knowledge base and builds the recognizer.
	NewRuntime RuntimeFactory
}

// DefaultDeps returns the default dependencies for production use.
func DefaultDeps() *CommandDeps {
	return &CommandDeps{
		LoadConfig: func() (*config.Config, error) { return config.LoadConfig("") },
		Logger:     logging.MustGlobal,
		NewRuntime: NewRuntime,
	}
}

func (d *CommandDeps) logger() logging.Logger {
	if d.Logger == nil {
		return logging.NewNopLogger()
	}
	if l := d.Logger(); l != nil {
		return l
	}
	return logging.NewNopLogger()
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "" || name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return string(data), nil
}

// writeOutput renders v as JSON or YAML; text output is left to the caller
// and reported as false.
func writeOutput(w io.Writer, format string, v interface{}) (bool, error) {
	switch strings.ToLower(format) {
	case "", OutputText:
		return false, nil
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return true, enc.Encode(v)
	default:
		return false, fmt.Errorf("invalid output format: %q (must be text, json, or yaml)", format)
	}
}
