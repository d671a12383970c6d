package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/credentials"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
)

func TestNewKBCommand(t *testing.T) {
	cmd := NewKBCommand(createTestDeps(config.DefaultConfig()))

	assert.Equal(t, "kb", cmd.Use)
	assert.Contains(t, cmd.Aliases, "knowledge-base")

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, name := range []string{"status", "import", "names", "password"} {
		assert.True(t, subcommands[name], "missing subcommand %s", name)
	}
}

func TestKBImportCommand_Flags(t *testing.T) {
	cmd := newKBImportCommand(createTestDeps(config.DefaultConfig()))

	to := cmd.Flags().Lookup("to")
	require.NotNil(t, to)
	assert.Equal(t, kb.BackendSQLite, to.DefValue)

	progress := cmd.Flags().Lookup("progress")
	require.NotNil(t, progress)
	assert.Equal(t, "true", progress.DefValue)

	assert.NotNil(t, cmd.Flags().Lookup("path"))
	assert.NotEmpty(t, cmd.Example)
}

func TestKBStatus_TSV(t *testing.T) {
	cfg := writeTestFiles(t)
	cmd := newKBStatusCommand(createTestDeps(cfg))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Backend:   tsv")
	assert.Contains(t, out.String(), "Version:   "+testKBVersion)
	assert.Contains(t, out.String(), "Entities:  2")
}

func TestKBStatus_JSON(t *testing.T) {
	cfg := writeTestFiles(t)
	cmd := newKBStatusCommand(createTestDeps(cfg))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--output", "json"})
	require.NoError(t, cmd.Execute())

	var status KBStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, kb.BackendTSV, status.Backend)
	assert.Equal(t, testKBVersion, status.Version)
	assert.Equal(t, 2, status.Entities)
	// john, smith
	assert.Equal(t, 2, status.Names)
	assert.True(t, strings.HasPrefix(status.Handle, "penf-ner-kb-"))
}

func TestKBImport_SQLiteRoundTrip(t *testing.T) {
	cfg := writeTestFiles(t)
	dbPath := filepath.Join(t.TempDir(), "kb.sqlite")

	importCmd := newKBImportCommand(createTestDeps(cfg))
	var out bytes.Buffer
	importCmd.SetOut(&out)
	importCmd.SetArgs([]string{
		filepath.Join(cfg.InputDir, "kb.tsv"),
		"--to", "sqlite", "--path", dbPath, "--progress=false",
	})
	require.NoError(t, importCmd.Execute())
	assert.Contains(t, out.String(), "Imported 2 entities (version "+testKBVersion+")")

	sqliteCfg := *cfg
	sqliteCfg.KB.Backend = kb.BackendSQLite
	sqliteCfg.KB.Path = dbPath

	statusCmd := newKBStatusCommand(createTestDeps(&sqliteCfg))
	out.Reset()
	statusCmd.SetOut(&out)
	statusCmd.SetArgs([]string{"-o", "yaml"})
	require.NoError(t, statusCmd.Execute())
	assert.Contains(t, out.String(), "backend: sqlite")
	assert.Contains(t, out.String(), "version: "+testKBVersion)
	assert.Contains(t, out.String(), "entities: 2")

	recognizeCmd := NewRecognizeCommand(createTestDeps(&sqliteCfg))
	out.Reset()
	recognizeCmd.SetOut(&out)
	recognizeCmd.SetIn(strings.NewReader("We visited Paris today."))
	recognizeCmd.SetArgs([]string{})
	require.NoError(t, recognizeCmd.Execute())
	assert.Equal(t, "11\t16\tkb\tParis\t2\n", out.String())
}

func TestKBImport_Errors(t *testing.T) {
	cfg := writeTestFiles(t)
	src := filepath.Join(cfg.InputDir, "kb.tsv")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing path", args: []string{src, "--to", "sqlite"}, want: "--path is required"},
		{name: "bad target", args: []string{src, "--to", "mysql"}, want: "invalid --to"},
		{name: "missing source", args: []string{filepath.Join(cfg.InputDir, "nope.tsv"), "--path", "x"}, want: "opening"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newKBImportCommand(createTestDeps(cfg))
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(tt.args)
			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestKBNames(t *testing.T) {
	cfg := writeTestFiles(t)

	cmd := newKBNamesCommand(createTestDeps(cfg))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "john\t50\nsmith\t50\n", out.String())

	cmd = newKBNamesCommand(createTestDeps(cfg))
	out.Reset()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"SM"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "smith\t50\n", out.String())
}

func TestSetPassword(t *testing.T) {
	keyring.MockInit()

	cfg := config.DefaultConfig()
	store := credentials.NewStore(credentials.NewKeyringProvider())

	var out bytes.Buffer
	require.NoError(t, setPassword(store, cfg, "s3cret-password", &out))
	assert.Contains(t, out.String(), "s3****rd")
	assert.NotContains(t, out.String(), "s3cret-password")

	account := credentials.Account(cfg.PostgresDBConfig(""))
	assert.Contains(t, out.String(), account)

	pw, _, err := store.Password(account)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-password", pw)

	assert.Error(t, setPassword(store, cfg, "", &out))
}

func TestReadPassword_Pipe(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter2\nextra\n"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)

	pw, err = readPassword(strings.NewReader("no-newline"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}
