package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for recognition operations.
	TracerName = "penf-ner"
)

// Span attribute keys
const (
	AttrDocumentID = "document_id"
	AttrMode       = "mode"
	AttrLanguage   = "language"
	AttrTextLength = "text_length"
	AttrPass       = "pass"
	AttrMentions   = "mentions"
	AttrKept       = "kept"
	AttrKBVersion  = "kb_version"
	AttrErrorCode  = "error_code"
)

// Span names
const (
	SpanRecognize = "ner.recognize"
	SpanKBConnect = "ner.kb.connect"
)

// Pass names used for spans and metrics.
const (
	PassIngest       = "ingest"
	PassOverlap      = "overlap"
	PassDisambiguate = "disambiguate"
	PassContext      = "context"
	PassRepair       = "repair"
	PassNameCoref    = "coref_names"
	PassPronounCoref = "coref_pronouns"
	PassProperNouns  = "proper_nouns"
	PassAdjacency    = "adjacency"
	PassUnknownNames = "unknown_names"
	PassFilter       = "filter"
)

// Tracer provides tracing for recognition operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer using the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartDocumentSpan starts a root span for one document.
func (t *Tracer) StartDocumentSpan(ctx context.Context, documentID, mode, language string, textLength int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanRecognize,
		trace.WithAttributes(
			attribute.String(AttrDocumentID, documentID),
			attribute.String(AttrMode, mode),
			attribute.String(AttrLanguage, language),
			attribute.Int(AttrTextLength, textLength),
		),
	)
}

// StartPassSpan starts a span for one pipeline pass.
func (t *Tracer) StartPassSpan(ctx context.Context, pass string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("ner.pass.%s", pass),
		trace.WithAttributes(
			attribute.String(AttrPass, pass),
		),
	)
}

// StartKBConnectSpan starts a span around knowledge base acquisition.
func (t *Tracer) StartKBConnectSpan(ctx context.Context, backend string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanKBConnect,
		trace.WithAttributes(attribute.String("backend", backend)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetMentionCounts records how many mentions a pass saw and kept.
func (h *SpanHelper) SetMentionCounts(mentions, kept int) {
	h.span.SetAttributes(
		attribute.Int(AttrMentions, mentions),
		attribute.Int(AttrKept, kept),
	)
}

// SetKBVersion sets the knowledge base version attribute.
func (h *SpanHelper) SetKBVersion(version string) {
	h.span.SetAttributes(attribute.String(AttrKBVersion, version))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorCode, code))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
