// Package main provides the penf-ner CLI entry point.
// penf-ner annotates text with knowledge base entities, coreferences and dates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-ner/cmd"
	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/pkg/buildinfo"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
)

// Global flags and state.
var (
	cfgFile        string
	language       string
	inputDir       string
	kbBackend      string
	kbPath         string
	dictionary     string
	matcherCommand string
	logLevel       string
	logJSON        bool

	// cfg holds the loaded configuration.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "penf-ner",
	Short: "Named entity recognition and coreference against a knowledge base",
	Long: `penf-ner finds knowledge base entities in text, picks the sense each mention
refers to, links pronouns and partial names to earlier mentions, and reports
dates and date intervals.

COMMON WORKFLOWS:
  One document:     penf-ner recognize article.txt
  Batch / service:  penf-ner daemon < stream.txt
  Prepare the KB:   penf-ner kb import kb.tsv --to sqlite --path kb.sqlite
  Check the KB:     penf-ner kb status

Configuration is read from ~/.penf-ner/config.yaml (or $PENF_NER_CONFIG_DIR),
then PENF_NER_* environment variables, then flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		// Skip initialization for commands that don't need it.
		if c.Name() == "version" || c.Name() == "help" || c.Name() == "completion" {
			return nil
		}

		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if err := applyFlags(c, loaded); err != nil {
			return err
		}
		cfg = loaded

		logging.SetGlobal(logging.NewLogger(cfg.LoggingConfig(cmd.ServiceName)))
		return nil
	},
}

// applyFlags overrides configuration with the global flags that were set.
func applyFlags(c *cobra.Command, target *config.Config) error {
	flags := c.Flags()
	if flags.Changed("lang") {
		target.Language = language
	}
	if flags.Changed("input-dir") {
		target.InputDir = inputDir
	}
	if flags.Changed("kb-backend") {
		target.KB.Backend = kbBackend
	}
	if flags.Changed("kb-path") {
		target.KB.Path = kbPath
	}
	if flags.Changed("dictionary") {
		target.Matcher.Dictionary = dictionary
	}
	if flags.Changed("matcher-command") {
		target.Matcher.Command = matcherCommand
	}
	if flags.Changed("log-level") {
		target.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		v := logJSON
		target.Log.JSON = &v
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}
	return nil
}

// currentConfig returns a copy of the loaded configuration so commands can
// apply their own flags.
func currentConfig() (*config.Config, error) {
	if cfg == nil {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	c := *cfg
	return &c, nil
}

// Version command flags.
var versionOutputJSON bool

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the version, commit hash, and build time of penf-ner.

Examples:
  penf-ner version
  penf-ner version --output-json`,
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get(cmd.ServiceName)
		out := c.OutOrStdout()
		if versionOutputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}
		fmt.Fprintf(out, "penf-ner version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

// configCmd manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and initialize the penf-ner configuration file.`,
}

// configShowCmd displays the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration (file, environment and flags) as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := currentConfig()
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		if current.Redis.Password != "" {
			current.Redis.Password = "****"
		}

		configPath := cfgFile
		if configPath == "" {
			configPath, _ = config.ConfigPath()
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# config file: %s\n", configPath)
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(current)
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with default values if one doesn't exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}
		out := cmd.OutOrStdout()

		// Check if config already exists.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Configuration file already exists: %s\n", configPath)
			fmt.Fprintln(out, "Use 'penf-ner config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := config.SaveConfig(defaultCfg); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Fprintf(out, "Created configuration file: %s\n", configPath)
		fmt.Fprintln(out, "Set kb.path and matcher.dictionary before running 'penf-ner recognize'.")
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for penf-ner.

Bash:
  $ source <(penf-ner completion bash)

Zsh:
  $ penf-ner completion zsh > "${fpath[1]}/_penf-ner"

Fish:
  $ penf-ner completion fish | source

PowerShell:
  PS> penf-ner completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.Annotations = map[string]string{cobra.CommandDisplayNameAnnotation: "penf-ner"}

	// Global flags.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.penf-ner/config.yaml)")
	pf.StringVar(&language, "lang", "", "text language (en, cs)")
	pf.StringVar(&inputDir, "input-dir", "", "directory for relative dictionary and knowledge base paths")
	pf.StringVar(&kbBackend, "kb-backend", "", "knowledge base backend: tsv, sqlite, postgres")
	pf.StringVar(&kbPath, "kb-path", "", "knowledge base file (tsv or sqlite)")
	pf.StringVar(&dictionary, "dictionary", "", "matcher dictionary file")
	pf.StringVar(&matcherCommand, "matcher-command", "", "external matcher command (overrides --dictionary)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&logJSON, "log-json", false, "force JSON logs (default: JSON when stderr is not a terminal)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "recognize", Title: "Recognition:"},
		&cobra.Group{ID: "kb", Title: "Knowledge Base:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	deps := &cmd.CommandDeps{
		LoadConfig: currentConfig,
		Logger:     logging.MustGlobal,
		NewRuntime: cmd.NewRuntime,
	}

	recognizeCmd := cmd.NewRecognizeCommand(deps)
	recognizeCmd.GroupID = "recognize"
	rootCmd.AddCommand(recognizeCmd)

	daemonCmd := cmd.NewDaemonCommand(deps)
	daemonCmd.GroupID = "recognize"
	rootCmd.AddCommand(daemonCmd)

	kbCmd := cmd.NewKBCommand(deps)
	kbCmd.GroupID = "kb"
	rootCmd.AddCommand(kbCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	versionCmd.Flags().BoolVar(&versionOutputJSON, "output-json", false, "Output as JSON")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Set up signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		// stdout may carry protocol output; report on stderr.
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
		os.Exit(130)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
