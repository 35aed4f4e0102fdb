package tracing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// LangfuseClient is the part of the Langfuse client the exporter uses
type LangfuseClient interface {
	Trace(t *model.Trace) (*model.Trace, error)
	Generation(g *model.Generation, parentID *string) (*model.Generation, error)
	Span(s *model.Span, parentID *string) (*model.Span, error)
	Flush(ctx context.Context)
}

var (
	_ LangfuseClient        = (*langfuse.Langfuse)(nil)
	_ sdktrace.SpanExporter = (*LangfuseExporter)(nil)
)

// maxTrackedTraces bounds the set of trace ids already sent to Langfuse
const maxTrackedTraces = 4096

// LangfuseExporter forwards finished spans to Langfuse. LLM and embedding
// spans become generations, every other span becomes a Langfuse span.
type LangfuseExporter struct {
	client      LangfuseClient
	environment string
	logger      logging.Logger

	mu       sync.Mutex
	traces   map[string]struct{}
	shutdown bool
}

// LangfuseOption configures a LangfuseExporter
type LangfuseOption func(*LangfuseExporter)

// WithLangfuseLogger sets the exporter logger
func WithLangfuseLogger(logger logging.Logger) LangfuseOption {
	return func(e *LangfuseExporter) {
		e.logger = logger
	}
}

// NewLangfuseExporter creates an exporter on top of client, typically
// langfuse.New(ctx), which reads its credentials from the environment.
func NewLangfuseExporter(client LangfuseClient, environment string, opts ...LangfuseOption) *LangfuseExporter {
	e := &LangfuseExporter{
		client:      client,
		environment: environment,
		traces:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	return e
}

// ExportSpans implements sdktrace.SpanExporter
func (e *LangfuseExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	stopped := e.shutdown
	e.mu.Unlock()
	if stopped {
		return nil
	}

	var errs []error
	for _, span := range spans {
		if err := e.export(span); err != nil {
			errs = append(errs, err)
		}
	}
	e.client.Flush(ctx)

	if err := errors.Join(errs...); err != nil {
		e.logger.Error(ctx, "Failed to export spans to Langfuse", map[string]interface{}{
			"error": err.Error(),
			"spans": len(spans),
		})
		return err
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter
func (e *LangfuseExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	e.mu.Unlock()

	e.client.Flush(ctx)
	return nil
}

func (e *LangfuseExporter) export(span sdktrace.ReadOnlySpan) error {
	attrs := attributeMap(span.Attributes())
	traceID := span.SpanContext().TraceID().String()
	spanID := span.SpanContext().SpanID().String()

	var parentID string
	if span.Parent().IsValid() {
		parentID = span.Parent().SpanID().String()
	}

	if e.firstSeen(traceID) {
		trace := &model.Trace{
			ID:        traceID,
			Name:      span.Name(),
			SessionID: stringAttr(attrs, semconv.SessionID),
			UserID:    stringAttr(attrs, semconv.UserID),
			Tags:      stringSliceAttr(attrs, semconv.TagTags),
			Metadata:  metadataOf(nil, e.environment),
		}
		if _, err := e.client.Trace(trace); err != nil {
			e.forget(traceID)
			return fmt.Errorf("failed to create Langfuse trace: %w", err)
		}
	}

	start, end := span.StartTime(), span.EndTime()
	level, statusMessage := observationLevel(span)
	metadata := metadataOf(attrs, e.environment)

	switch stringAttr(attrs, semconv.SpanKind) {
	case semconv.SpanKindLLM, semconv.SpanKindEmbedding:
		generation := &model.Generation{
			ID:                  spanID,
			TraceID:             traceID,
			Name:                span.Name(),
			StartTime:           &start,
			EndTime:             &end,
			Model:               firstString(attrs, semconv.LLMModelName, semconv.EmbeddingModelName),
			Input:               attrs[semconv.InputValue],
			Output:              attrs[semconv.OutputValue],
			Metadata:            metadata,
			Level:               level,
			StatusMessage:       statusMessage,
			ParentObservationID: parentID,
			Usage: model.Usage{
				Input:  intAttr(attrs, semconv.LLMTokenCountPrompt),
				Output: intAttr(attrs, semconv.LLMTokenCountCompletion),
				Total:  intAttr(attrs, semconv.LLMTokenCountTotal),
			},
		}
		if first, ok := firstTokenTime(span); ok {
			generation.CompletionStartTime = &first
		}
		if _, err := e.client.Generation(generation, nil); err != nil {
			return fmt.Errorf("failed to create Langfuse generation: %w", err)
		}
		return nil
	default:
		observation := &model.Span{
			ID:                  spanID,
			TraceID:             traceID,
			Name:                span.Name(),
			StartTime:           &start,
			EndTime:             &end,
			Input:               attrs[semconv.InputValue],
			Output:              attrs[semconv.OutputValue],
			Metadata:            metadata,
			Level:               level,
			StatusMessage:       statusMessage,
			ParentObservationID: parentID,
		}
		if _, err := e.client.Span(observation, nil); err != nil {
			return fmt.Errorf("failed to create Langfuse span: %w", err)
		}
		return nil
	}
}

// firstSeen records traceID and reports whether it was new
func (e *LangfuseExporter) firstSeen(traceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.traces[traceID]; ok {
		return false
	}
	if len(e.traces) >= maxTrackedTraces {
		clear(e.traces)
	}
	e.traces[traceID] = struct{}{}
	return true
}

func (e *LangfuseExporter) forget(traceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.traces, traceID)
}

func observationLevel(span sdktrace.ReadOnlySpan) (model.ObservationLevel, string) {
	if span.Status().Code == codes.Error {
		return model.ObservationLevel("ERROR"), span.Status().Description
	}
	return model.ObservationLevel("DEFAULT"), ""
}

func firstTokenTime(span sdktrace.ReadOnlySpan) (time.Time, bool) {
	for _, event := range span.Events() {
		if event.Name == semconv.FirstTokenEvent {
			return event.Time, true
		}
	}
	return time.Time{}, false
}

func attributeMap(kvs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

// metadataOf keeps every attribute not already mapped onto a Langfuse field
func metadataOf(attrs map[string]any, environment string) model.M {
	metadata := make(model.M, len(attrs)+1)
	for k, v := range attrs {
		switch k {
		case semconv.InputValue, semconv.OutputValue:
			continue
		}
		metadata[k] = v
	}
	if environment != "" {
		metadata["environment"] = environment
	}
	return metadata
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func firstString(attrs map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringAttr(attrs, key); s != "" {
			return s
		}
	}
	return ""
}

func stringSliceAttr(attrs map[string]any, key string) []string {
	s, _ := attrs[key].([]string)
	return s
}

func intAttr(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
