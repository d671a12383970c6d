package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/pkg/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}
}

func TestVersionFlags(t *testing.T) {
	if versionCmd.Flags().Lookup("output-json") == nil {
		t.Error("--output-json flag not found on version command")
	}
}

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "penf-ner version "+buildinfo.Version) {
		t.Errorf("unexpected version output: %q", out)
	}
	if !strings.Contains(out, "commit:") {
		t.Errorf("version output missing commit: %q", out)
	}
}

func TestVersionOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionOutputJSON = true
	defer func() { versionOutputJSON = false }()

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	var info buildinfo.Info
	if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
		t.Fatalf("version --output-json is not valid JSON: %v\n%s", err, buf.String())
	}
	if info.Version != buildinfo.Version {
		t.Errorf("expected version %q, got %q", buildinfo.Version, info.Version)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := []string{"recognize", "daemon", "kb", "config", "completion", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestRootGlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "lang", "input-dir", "kb-backend", "kb-path", "dictionary", "matcher-command", "log-level", "log-json"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found on root command", name)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	t.Setenv("PENF_NER_CONFIG_DIR", t.TempDir())

	loaded, err := loadFreshConfig()
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	parseRootFlags(t, "--lang", "cs", "--kb-backend", "sqlite")

	if err := applyFlags(rootCmd, loaded); err != nil {
		t.Fatalf("applyFlags failed: %v", err)
	}
	if loaded.Language != "cs" {
		t.Errorf("expected language cs, got %q", loaded.Language)
	}
	if loaded.KB.Backend != "sqlite" {
		t.Errorf("expected backend sqlite, got %q", loaded.KB.Backend)
	}
	if loaded.Matcher.Dictionary != "" {
		t.Errorf("unset flag should not override dictionary, got %q", loaded.Matcher.Dictionary)
	}
}

func TestApplyFlagsRejectsInvalid(t *testing.T) {
	t.Setenv("PENF_NER_CONFIG_DIR", t.TempDir())

	loaded, err := loadFreshConfig()
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}

	parseRootFlags(t, "--kb-backend", "mongo")

	if err := applyFlags(rootCmd, loaded); err == nil {
		t.Error("expected error for unknown backend")
	}
}

// loadFreshConfig drops the cached configuration and loads it again.
func loadFreshConfig() (*config.Config, error) {
	cfg = nil
	cfgFile = ""
	return currentConfig()
}

// parseRootFlags parses args on the root command and restores the flags
// when the test ends.
func parseRootFlags(t *testing.T, args ...string) {
	t.Helper()
	if err := rootCmd.ParseFlags(args); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}
	t.Cleanup(func() {
		rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		})
		cfg = nil
	})
}
