package kb

import (
	"github.com/otherjamesbrown/penf-ner/pkg/observability"
)

// Instrumented counts lookups against a KnowledgeBase.
type Instrumented struct {
	KnowledgeBase
	metrics *observability.Metrics
}

// Instrument wraps kb so every lookup is counted. A nil metrics returns kb unchanged.
func Instrument(kb KnowledgeBase, metrics *observability.Metrics) KnowledgeBase {
	if metrics == nil {
		return kb
	}
	return &Instrumented{KnowledgeBase: kb, metrics: metrics}
}

func (i *Instrumented) EntityType(id int) TypeSet {
	i.metrics.RecordKBLookup("entity_type")
	return i.KnowledgeBase.EntityType(id)
}

func (i *Instrumented) Field(id int, name string) string {
	i.metrics.RecordKBLookup("field")
	return i.KnowledgeBase.Field(id, name)
}

func (i *Instrumented) FieldList(id int, name string) []string {
	i.metrics.RecordKBLookup("field")
	return i.KnowledgeBase.FieldList(id, name)
}

func (i *Instrumented) Confidence(id int) (float64, error) {
	i.metrics.RecordKBLookup("confidence")
	score, err := i.KnowledgeBase.Confidence(id)
	if err != nil {
		i.metrics.RecordKBError("confidence")
	}
	return score, err
}

func (i *Instrumented) Nationalities(id int) []string {
	i.metrics.RecordKBLookup("nationalities")
	return i.KnowledgeBase.Nationalities(id)
}

func (i *Instrumented) Dates(id int) []string {
	i.metrics.RecordKBLookup("dates")
	return i.KnowledgeBase.Dates(id)
}

func (i *Instrumented) PeopleNamed(folded string) []int {
	i.metrics.RecordKBLookup("people_named")
	return i.KnowledgeBase.PeopleNamed(folded)
}

func (i *Instrumented) URI(id int) string {
	i.metrics.RecordKBLookup("uri")
	return i.KnowledgeBase.URI(id)
}
