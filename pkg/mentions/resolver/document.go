package resolver

import (
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions"
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
	"github.com/otherjamesbrown/penf-ner/pkg/textutil"
)

// document is the state of one Recognize call. Nothing in it outlives the call.
type document struct {
	kb       kb.KnowledgeBase
	lang     lang.Language
	text     *textutil.Text
	registry *mentions.Registry
	config   Config
	opts     Options
	logger   logging.Logger
	metrics  *observability.Metrics
}

func newDocument(r *Recognizer, text string, opts Options) *document {
	return &document{
		kb:       r.kb,
		lang:     r.lang,
		text:     textutil.NewText(text),
		registry: mentions.NewRegistry(),
		config:   r.config,
		opts:     opts,
		logger:   r.logger,
		metrics:  r.metrics,
	}
}

func (d *document) setSense(m *mentions.Mention, s mentions.Sense) {
	d.registry.SetPreferredSense(m, s)
}

func (d *document) isPronoun(m *mentions.Mention) bool {
	_, ok := d.lang.PronounClass(m.Source)
	return ok
}

func (d *document) recordCoreference(method string) {
	if d.metrics != nil {
		d.metrics.RecordCoreference(method)
	}
}

// senseEnv exposes a mention's surroundings to the language sense filters.
type senseEnv struct {
	d *document
	m *mentions.Mention
}

func (e senseEnv) Source() string { return e.m.Source }

func (e senseEnv) LeftContext(s string) bool {
	n := len([]rune(s))
	if e.m.Start-n < 0 {
		return false
	}
	return e.d.text.Slice(e.m.Start-n, e.m.Start) == s
}

func (e senseEnv) RightContext(s string) bool {
	n := len([]rune(s))
	if e.m.End+n > e.d.text.Len() {
		return false
	}
	return e.d.text.Slice(e.m.End, e.m.End+n) == s
}

func (e senseEnv) HasType(id int, typ string) bool {
	return e.d.kb.EntityType(id).Has(typ)
}
