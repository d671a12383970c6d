package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/credentials"
	"github.com/otherjamesbrown/penf-ner/pkg/db"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
)

// KBStatus is the output of 'kb status'.
type KBStatus struct {
	Backend  string `json:"backend" yaml:"backend"`
	Handle   string `json:"handle" yaml:"handle"`
	Version  string `json:"version" yaml:"version"`
	Entities int    `json:"entities,omitempty" yaml:"entities,omitempty"`
	Names    int    `json:"names,omitempty" yaml:"names,omitempty"`
	LoadTime string `json:"load_time" yaml:"load_time"`
}

// NewKBCommand creates the kb command with all subcommands.
func NewKBCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Knowledge base management commands",
		Long: `Knowledge base management commands.

The knowledge base is a TSV file, a SQLite database or a PostgreSQL database,
selected by kb.backend in the configuration. 'kb import' converts a TSV export
into either database; 'kb status' loads the configured backend and reports
its version.`,
		Aliases: []string{"knowledge-base"},
	}

	cmd.AddCommand(newKBStatusCommand(deps))
	cmd.AddCommand(newKBImportCommand(deps))
	cmd.AddCommand(newKBNamesCommand(deps))
	cmd.AddCommand(newKBPasswordCommand(deps))

	return cmd
}

// newKBStatusCommand creates the 'kb status' subcommand.
func newKBStatusCommand(deps *CommandDeps) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Load the knowledge base and show its version",
		Long: `Load the configured knowledge base, waiting up to kb.connect_timeout for it
to become ready, and show its version and size. The version is checked against
kb.expected_version when set.`,
		Example: `  penf-ner kb status
  penf-ner kb status --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKBStatus(cmd.Context(), deps, cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func connectOnly(ctx context.Context, deps *CommandDeps) (*Runtime, *kb.Handle, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: deps.logger()}
	h, err := rt.connectKB(ctx, nil)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	rt.closers = append(rt.closers, h.Close)
	return rt, h, nil
}

func runKBStatus(ctx context.Context, deps *CommandDeps, out io.Writer, output string) error {
	start := time.Now()
	rt, h, err := connectOnly(ctx, deps)
	if err != nil {
		return err
	}
	defer rt.Close()

	status := KBStatus{
		Backend:  rt.Config.KB.Backend,
		Handle:   h.Name,
		Version:  h.Version(),
		LoadTime: time.Since(start).Round(time.Millisecond).String(),
	}
	if m, ok := baseKB(h.KB).(*kb.Memory); ok {
		status.Entities = m.Len()
		status.Names = len(m.NameIndex())
	}

	if ok, err := writeOutput(out, output, status); ok || err != nil {
		return err
	}
	fmt.Fprintf(out, "Backend:   %s\n", status.Backend)
	fmt.Fprintf(out, "Version:   %s\n", status.Version)
	fmt.Fprintf(out, "Entities:  %d\n", status.Entities)
	fmt.Fprintf(out, "Names:     %d\n", status.Names)
	fmt.Fprintf(out, "Handle:    %s\n", status.Handle)
	fmt.Fprintf(out, "Load time: %s\n", status.LoadTime)
	return nil
}

// newKBImportCommand creates the 'kb import' subcommand.
func newKBImportCommand(deps *CommandDeps) *cobra.Command {
	var (
		to       string
		path     string
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "import <kb.tsv>",
		Short: "Import a TSV knowledge base into SQLite or PostgreSQL",
		Long: `Import a TSV knowledge base export into a database backend.

sqlite writes a fresh database file at --path, replacing any existing one.
postgres applies the schema if needed and replaces the knowledge base tables
in one transaction, using the kb.postgres settings and the stored password.`,
		Example: `  penf-ner kb import kb.tsv --to sqlite --path kb.sqlite
  penf-ner kb import kb.tsv --to postgres`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKBImport(cmd.Context(), deps, cmd.OutOrStdout(), args[0], to, path, progress)
		},
	}
	cmd.Flags().StringVar(&to, "to", kb.BackendSQLite, "Target backend: sqlite or postgres")
	cmd.Flags().StringVar(&path, "path", "", "SQLite database file to create")
	cmd.Flags().BoolVar(&progress, "progress", true, "Show a progress bar")
	return cmd
}

func runKBImport(ctx context.Context, deps *CommandDeps, out io.Writer, src, to, path string, progress bool) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := deps.logger()

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	version, entities, err := kb.ReadTSV(f)
	if err != nil {
		return err
	}
	logger.Info("Knowledge base read", logging.F("version", version), logging.F("entities", len(entities)))

	switch to {
	case kb.BackendSQLite:
		if path == "" {
			return fmt.Errorf("--path is required for sqlite")
		}
		if err := importSQLite(ctx, path, version, entities, progress); err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d entities (version %s) into %s\n", len(entities), version, path)
	case kb.BackendPostgres:
		pg, err := postgresConfig(cfg, logger)
		if err != nil {
			return err
		}
		if err := importPostgres(ctx, pg, version, entities, out); err != nil {
			return err
		}
		fmt.Fprintf(out, "Imported %d entities (version %s) into %s/%s\n", len(entities), version, pg.Host, pg.Database)
	default:
		return fmt.Errorf("invalid --to: %q (must be sqlite or postgres)", to)
	}
	return nil
}

func importSQLite(ctx context.Context, path, version string, entities []*kb.Entity, progress bool) error {
	sqlDB, err := kb.CreateSQLite(path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var tick func()
	if progress {
		bar := pb.New(len(entities))
		bar.Output = os.Stderr
		bar.ShowSpeed = true
		bar.Start()
		defer bar.Finish()
		tick = func() { bar.Increment() }
	}
	return kb.WriteSQL(ctx, sqlDB, version, entities, tick)
}

func importPostgres(ctx context.Context, cfg *db.Config, version string, entities []*kb.Entity, out io.Writer) error {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close(pool)

	applied, err := db.EnsureSchema(ctx, pool, db.KBSchema)
	if err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	for _, name := range applied {
		fmt.Fprintf(out, "Applied schema step %s\n", name)
	}
	return kb.WritePostgres(ctx, pool, version, entities)
}

// newKBNamesCommand creates the 'kb names' subcommand.
func newKBNamesCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "names [prefix]",
		Short: "List person name index keys",
		Long: `List the keys of the person name index built from NAME and ALIASES, with the
ids of the people each key names. Keys are lowercase and accent-folded. When
redis.enabled is set, the index is read from and stored in the cache.`,
		Example: `  penf-ner kb names
  penf-ner kb names "the pres"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runKBNames(cmd.Context(), deps, cmd.OutOrStdout(), prefix)
		},
	}
	return cmd
}

func runKBNames(ctx context.Context, deps *CommandDeps, out io.Writer, prefix string) error {
	rt, h, err := connectOnly(ctx, deps)
	if err != nil {
		return err
	}
	defer rt.Close()

	m, ok := baseKB(h.KB).(*kb.Memory)
	if !ok {
		return fmt.Errorf("knowledge base does not expose a name index")
	}
	idx := m.NameIndex()
	prefix = strings.ToLower(prefix)
	for _, key := range idx.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		ids := append([]int(nil), idx[key]...)
		sort.Ints(ids)
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(out, "%s\t%s\n", key, strings.Join(parts, ";"))
	}
	return nil
}

// newKBPasswordCommand creates the 'kb password' subcommands.
func newKBPasswordCommand(deps *CommandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the knowledge base database password",
		Long: `Store or remove the PostgreSQL password in the system keyring. The account
is user@host:port/database from the kb.postgres settings.
PENF_NER_KB_DB_PASSWORD, when set, takes precedence over the keyring.`,
	}

	setCmd := &cobra.Command{
		Use:     "set",
		Short:   "Store the password (read from the terminal or stdin)",
		Example: `  penf-ner kb password set`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return setPassword(credentials.DefaultStore(), cfg, password, cmd.OutOrStdout())
		},
	}

	clearCmd := &cobra.Command{
		Use:     "clear",
		Short:   "Remove the stored password",
		Example: `  penf-ner kb password clear`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			account := credentials.Account(cfg.PostgresDBConfig(""))
			if err := credentials.DefaultStore().Delete(account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password removed for %s\n", account)
			return nil
		},
	}

	cmd.AddCommand(setCmd, clearCmd)
	return cmd
}

func setPassword(store *credentials.Store, cfg *config.Config, password string, out io.Writer) error {
	if password == "" {
		return fmt.Errorf("empty password")
	}
	account := credentials.Account(cfg.PostgresDBConfig(""))
	if err := store.Save(account, password); err != nil {
		return err
	}
	fmt.Fprintf(out, "Password %s stored for %s\n", credentials.MaskCredential(password), account)
	return nil
}

// readPassword reads without echo from a terminal, otherwise one line of in.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
