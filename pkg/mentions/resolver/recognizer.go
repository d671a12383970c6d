// Package resolver turns dictionary matches into disambiguated annotations.
//
// A document goes through these passes, in order:
//  1. Ingest - matcher records become mentions; nationality forms are set aside
//  2. Overlap - keep the longest match, or merge overlapping matches
//  3. Disambiguate - language filters and static scores, per mention
//  4. Context - paragraph statistics rescore ambiguous mentions
//  5. Repair - unsupported choices follow the nearest strong mention
//  6. Coreference - name fragments first, then pronouns
//  7. Cleanup - proper-noun arbitration and same-type adjacency
//  8. Names - optional unknown names from the secondary recognizer
//  9. Filter - the output mode decides what is printed
//
// Every pass mutates the mentions in place; nothing is shared between calls
// except the read-only knowledge base.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"github.com/otherjamesbrown/penf-ner/pkg/dates"
	pferrors "github.com/otherjamesbrown/penf-ner/pkg/errors"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/matcher"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/names"
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
	"github.com/otherjamesbrown/penf-ner/pkg/propernoun"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// ProperNounFinder finds capitalised multi-word runs.
type ProperNounFinder interface {
	Find(text string) []mentions.Span
}

// Deps are the collaborators of a Recognizer. KB, Language and Matcher are
// required; the rest default to the built-in implementations.
type Deps struct {
	KB          kb.KnowledgeBase
	Language    lang.Language
	Matcher     matcher.Matcher
	Dates       dates.Finder
	ProperNouns ProperNounFinder
	Names       names.Recognizer
	Logger      logging.Logger
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
}

// Recognizer runs the recognition pipeline. It is safe for concurrent use as
// long as its knowledge base and matcher are.
type Recognizer struct {
	config  Config
	kb      kb.KnowledgeBase
	lang    lang.Language
	matcher matcher.Matcher
	dates   dates.Finder
	proper  ProperNounFinder
	names   names.Recognizer
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewRecognizer creates a recognizer.
func NewRecognizer(config Config, deps Deps) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.KB == nil || deps.Language == nil || deps.Matcher == nil {
		return nil, fmt.Errorf("%w: knowledge base, language and matcher are required", pferrors.ErrValidation)
	}

	r := &Recognizer{
		config:  config,
		kb:      deps.KB,
		lang:    deps.Language,
		matcher: deps.Matcher,
		dates:   deps.Dates,
		proper:  deps.ProperNouns,
		names:   deps.Names,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}
	if r.dates == nil {
		r.dates = dates.NewFinder()
	}
	if r.proper == nil || r.names == nil {
		scanner := propernoun.NewScanner(r.lang.ProperNounPreps())
		if r.proper == nil {
			r.proper = scanner
		}
		if r.names == nil {
			r.names = names.NewProperNounRecognizer(scanner)
		}
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	if r.tracer == nil {
		r.tracer = observability.NewTracer()
	}
	return r, nil
}

// SetHeartbeat sets the callback invoked before every pass.
func (r *Recognizer) SetHeartbeat(fn HeartbeatFunc) {
	r.config.Heartbeat = fn
}

// Result is the outcome of one Recognize call.
type Result struct {
	// Annotations are the kept mentions and temporal mentions by start offset.
	Annotations []mentions.Annotation
	Lines       []Line
}

// String renders the output lines, newline-joined.
func (res *Result) String() string {
	parts := make([]string, len(res.Lines))
	for i, l := range res.Lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// Recognize annotates text. A malformed confidence value in the knowledge
// base aborts the document with an error carrying the offending row.
func (r *Recognizer) Recognize(ctx context.Context, text string, opts Options) (*Result, error) {
	if opts.Mode == "" {
		opts.Mode = ModeDefault
	}
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", pferrors.ErrValidation, opts.Mode)
	}

	start := time.Now()
	text = textutil.Sanitize(text)
	if r.config.RemoveAccent {
		text = textutil.RemoveAccents(text)
	}

	if opts.DocumentID != "" {
		ctx = logging.ContextWithDocument(ctx, opts.DocumentID)
	}
	ctx, span := r.tracer.StartDocumentSpan(ctx, opts.DocumentID, string(opts.Mode), r.lang.Code(), len([]rune(text)))
	defer span.End()
	if traceID := observability.GetTraceID(ctx); traceID != "" {
		ctx = context.WithValue(ctx, logging.TraceIDKey, traceID)
	}
	helper := observability.NewSpanHelper(span)
	helper.SetKBVersion(r.kb.Version())

	d := newDocument(r, text, opts)
	d.logger = r.logger.WithContext(ctx)

	res, total, err := r.run(ctx, d)
	status := "ok"
	if err != nil {
		status = "error"
		helper.SetError(err, string(pferrors.ClassifyError(err, "").Code))
	} else {
		helper.SetMentionCounts(total, len(res.Annotations))
		helper.SetSuccess()
	}
	if r.metrics != nil {
		r.metrics.RecordDocument(string(opts.Mode), status, time.Since(start).Seconds())
	}
	return res, err
}

// run executes the passes; total is the number of mentions ingested.
func (r *Recognizer) run(ctx context.Context, d *document) (*Result, int, error) {
	var (
		records       []matcher.Record
		all           []*mentions.Mention
		entities      []*mentions.Mention
		nationalities []*mentions.Mention
		seq           []mentions.Annotation
		paragraphs    []int
		c             *Context
	)

	err := r.pass(ctx, observability.PassIngest, func(ctx context.Context) error {
		var err error
		records, err = r.lookup(ctx, d.text.String())
		if err != nil {
			return err
		}
		all, err = d.ingest(records)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	_ = r.pass(ctx, observability.PassOverlap, func(context.Context) error {
		if r.config.MergeOverlapping {
			all = MergeOverlapping(d.text, all)
		} else {
			all = KeepLongest(all)
		}
		for _, m := range all {
			switch {
			case m.IsNationality:
				nationalities = append(nationalities, m)
			case len(m.Senses) > 0 || len(m.PartialMatchSenses) > 0 || d.isPronoun(m):
				d.registry.Register(m)
				entities = append(entities, m)
			}
		}
		seq = r.sequence(d, entities)
		return nil
	})

	err = r.pass(ctx, observability.PassDisambiguate, func(context.Context) error {
		for _, m := range entities {
			if err := d.disambiguateWithoutContext(m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, len(all), err
	}

	err = r.pass(ctx, observability.PassContext, func(context.Context) error {
		paragraphs = textutil.ParagraphStarts(d.text)
		c = NewContext(d.kb, d.text, seq, paragraphs, nationalities)
		for _, m := range entities {
			if err := d.disambiguateWithContext(m, c); err != nil {
				return err
			}
			if !m.IsCoreference && m.HasPreferredSense() {
				c.Update(m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, len(all), err
	}

	_ = r.pass(ctx, observability.PassRepair, func(context.Context) error {
		d.repairPoorDisambiguation(entities)
		c = NewContext(d.kb, d.text, seq, paragraphs, nationalities)
		return nil
	})

	err = r.pass(ctx, observability.PassNameCoref, func(context.Context) error {
		var fragments []*mentions.Mention
		for _, m := range entities {
			if !d.isPronoun(m) && !strings.HasPrefix(strings.ToLower(m.Source), "the ") {
				fragments = append(fragments, m)
			}
		}
		return d.resolveCoreferences(fragments, c)
	})
	if err != nil {
		return nil, len(all), err
	}

	err = r.pass(ctx, observability.PassPronounCoref, func(context.Context) error {
		return d.resolveCoreferences(entities, c)
	})
	if err != nil {
		return nil, len(all), err
	}

	_ = r.pass(ctx, observability.PassProperNouns, func(context.Context) error {
		entities = filterProperNouns(d.text, entities, r.proper.Find(d.text.String()), nationalities...)
		return nil
	})

	_ = r.pass(ctx, observability.PassAdjacency, func(context.Context) error {
		entities = d.removeNearby(entities)
		keep := make(map[*mentions.Mention]struct{}, len(entities))
		for _, m := range entities {
			keep[m] = struct{}{}
		}
		seq = filterSeq(seq, func(m *mentions.Mention) bool {
			_, ok := keep[m]
			return ok
		})
		return nil
	})

	if d.opts.FindNames {
		_ = r.pass(ctx, observability.PassUnknownNames, func(ctx context.Context) error {
			seq = d.addUnknownNames(ctx, r.names, seq, records)
			return nil
		})
	}

	var lines []Line
	_ = r.pass(ctx, observability.PassFilter, func(context.Context) error {
		seq = d.filterFinal(seq)
		f := formatter{kb: d.kb, text: d.text, scores: d.opts.Mode == ModeScore, uri: r.config.ShowURI}
		lines = f.lines(seq)
		if r.metrics != nil {
			for _, l := range lines {
				r.metrics.RecordMention(l.Kind)
				if l.Payload == "" {
					r.metrics.UnresolvedMentions.Inc()
				}
			}
		}
		return nil
	})

	return &Result{Annotations: seq, Lines: lines}, len(all), nil
}

// lookup runs the matcher, on a lowercased copy of text when configured.
// Lowercasing maps codepoint by codepoint so offsets stay valid.
func (r *Recognizer) lookup(ctx context.Context, text string) ([]matcher.Record, error) {
	if r.config.Lowercase {
		text = strings.Map(unicode.ToLower, text)
	}
	return r.matcher.Lookup(ctx, text)
}

// pass runs one pipeline pass inside its own span and latency measurement.
func (r *Recognizer) pass(ctx context.Context, name string, fn func(context.Context) error) error {
	if r.config.Heartbeat != nil {
		r.config.Heartbeat(name)
	}
	ctx, span := r.tracer.StartPassSpan(ctx, name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if r.metrics != nil {
		r.metrics.RecordPass(name, time.Since(start).Seconds())
	}
	if err != nil {
		pe := pferrors.ClassifyError(err, name)
		observability.NewSpanHelper(span).SetError(err, string(pe.Code))
		return pe
	}
	elapsed := time.Since(start)
	observability.NewSpanHelper(span).AddEvent("pass.complete", attribute.Int64("duration_us", elapsed.Microseconds()))
	r.logger.WithContext(ctx).Debug("Pass complete", logging.F("pass", name), logging.F("duration", elapsed))
	return nil
}

// sequence interleaves entities with the dates that overlap none of them.
func (r *Recognizer) sequence(d *document, entities []*mentions.Mention) []mentions.Annotation {
	spans := make([]mentions.Span, len(entities))
	for i, m := range entities {
		spans[i] = m.Span
	}
	seq := make([]mentions.Annotation, 0, len(entities))
	for _, t := range r.dates.Find(d.text.String(), r.config.SplitIntervals) {
		if !overlapsAny(t.Span, spans) {
			seq = append(seq, t)
		}
	}
	for _, m := range entities {
		seq = append(seq, m)
	}
	sort.SliceStable(seq, func(i, j int) bool { return seq[i].Bounds().Start < seq[j].Bounds().Start })
	return seq
}

// ingest converts matcher records into registered mentions. Partial-match
// senses are limited to ids that some record in the document carries.
func (d *document) ingest(records []matcher.Record) ([]*mentions.Mention, error) {
	n := d.text.Len()
	all := make([]*mentions.Mention, 0, len(records))
	var global []int

	for _, rec := range records {
		if rec.Start < 0 || rec.End > n || rec.Start >= rec.End {
			return nil, fmt.Errorf("%w: range %d-%d outside a %d codepoint text", pferrors.ErrMalformedRecord, rec.Start, rec.End, n)
		}
		var senses []int
		for _, id := range rec.IDs {
			if id != matcher.PronounID {
				senses = append(senses, id)
			}
		}
		m := mentions.NewMention(rec.Start, rec.End, d.text.Slice(rec.Start, rec.End), senses)
		m.Flag = rec.Flag
		if len(m.Senses) == 0 && d.kb.IsNationalityForm(m.Source) {
			m.IsNationality = true
		}
		m.PartialMatchSenses = mentions.SortedUnique(d.kb.PeopleNamed(textutil.FoldName(m.Source)))
		global = append(global, m.Senses...)
		all = append(all, m)
	}

	global = mentions.SortedUnique(global)
	for _, m := range all {
		m.PartialMatchSenses = mentions.Intersect(m.PartialMatchSenses, global)
	}
	return all, nil
}

// filterFinal applies the output mode.
func (d *document) filterFinal(seq []mentions.Annotation) []mentions.Annotation {
	if d.opts.Mode == ModeDefault {
		return filterSeq(seq, func(m *mentions.Mention) bool {
			return m.HasPreferredSense() || m.IsName
		})
	}
	if d.opts.Mode == ModeAll {
		for _, a := range seq {
			if m, ok := a.(*mentions.Mention); ok {
				d.setSense(m, mentions.Unresolved())
			}
		}
	}
	return filterSeq(seq, func(m *mentions.Mention) bool {
		if m.IsName {
			return true
		}
		if m.IsCoreference {
			return len(m.PartialMatchSenses) > 0
		}
		return len(m.Senses) > 0
	})
}

// filterSeq keeps temporal mentions and the mentions accepted by keep.
func filterSeq(seq []mentions.Annotation, keep func(*mentions.Mention) bool) []mentions.Annotation {
	out := make([]mentions.Annotation, 0, len(seq))
	for _, a := range seq {
		if m, ok := a.(*mentions.Mention); ok && !keep(m) {
			continue
		}
		out = append(out, a)
	}
	return out
}
