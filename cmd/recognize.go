package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/penf-ner/config"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
)

// recognizeOptions holds the recognize command flags.
type recognizeOptions struct {
	all          bool
	score        bool
	names        bool
	uri          bool
	lowercase    bool
	removeAccent bool
	merge        bool
	language     string
}

// NewRecognizeCommand creates the recognize command.
func NewRecognizeCommand(deps *CommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}
	opts := &recognizeOptions{}

	cmd := &cobra.Command{
		Use:   "recognize [file]",
		Short: "Annotate a document with knowledge base entities",
		Long: `Annotate a document with knowledge base entities, coreferences and dates.

The document is read from the file argument, or from stdin when the argument
is missing or "-". Surrounding whitespace is trimmed and offsets refer to the
trimmed text. One line is printed per annotation:

  start TAB end TAB kind TAB fragment TAB payload

Kinds are kb, coref, date and interval (uri and uri_coref with --uri).

Flags:
  --all            Print every candidate instead of the resolved sense
  --score          Print every candidate with its score
  --names          Also report unknown person names (negative ids)
  --uri            Print knowledge base URIs instead of ids
  --lowercase      Match on a lowercased copy of the text
  --remove-accent  Strip accents before matching
  --lang           Text language (en, cs)`,
		Example: `  penf-ner recognize article.txt
  cat article.txt | penf-ner recognize --score
  penf-ner recognize --names --lang cs zprava.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return runRecognize(cmd.Context(), deps, cmd, opts, input)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Print every candidate sense")
	cmd.Flags().BoolVar(&opts.score, "score", false, "Print every candidate sense with its score")
	cmd.Flags().BoolVar(&opts.names, "names", false, "Report unknown person names")
	cmd.Flags().BoolVar(&opts.uri, "uri", false, "Print URIs instead of knowledge base ids")
	cmd.Flags().BoolVar(&opts.lowercase, "lowercase", false, "Match on lowercased text")
	cmd.Flags().BoolVar(&opts.removeAccent, "remove-accent", false, "Strip accents before matching")
	cmd.Flags().BoolVar(&opts.merge, "merge-overlapping", false, "Merge overlapping matches instead of keeping the longest")
	cmd.Flags().StringVar(&opts.language, "lang", "", "Text language: "+strings.Join(lang.Supported(), ", "))

	return cmd
}

// apply overlays the command flags onto cfg.
func (o *recognizeOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.all && o.score {
		return fmt.Errorf("--all and --score are mutually exclusive")
	}
	if o.uri {
		cfg.ShowURI = true
	}
	if o.lowercase {
		cfg.Lowercase = true
	}
	if o.removeAccent {
		cfg.RemoveAccent = true
	}
	if cmd.Flags().Changed("merge-overlapping") {
		cfg.MergeOverlapping = o.merge
	}
	if o.language != "" {
		cfg.Language = o.language
	}
	return cfg.Validate()
}

func (o *recognizeOptions) resolverOptions() resolver.Options {
	opts := resolver.Options{Mode: resolver.ModeDefault, FindNames: o.names}
	switch {
	case o.all:
		opts.Mode = resolver.ModeAll
	case o.score:
		opts.Mode = resolver.ModeScore
	}
	return opts
}

func runRecognize(ctx context.Context, deps *CommandDeps, cmd *cobra.Command, opts *recognizeOptions, input string) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}

	text, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)

	logger := deps.logger()
	rt, err := deps.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing recognizer: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to release knowledge base", logging.Err(err))
		}
	}()

	ro := opts.resolverOptions()
	ro.DocumentID = uuid.New().String()
	if input != "" && input != "-" {
		ro.DocumentID = input
	}

	res, err := rt.Recognizer.Recognize(ctx, text, ro)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}

func printResult(w io.Writer, res *resolver.Result) error {
	if len(res.Lines) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, res.String())
	return err
}
