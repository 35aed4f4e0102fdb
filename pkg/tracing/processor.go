package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/run-bigpig/traceai/pkg/masking"
	"github.com/run-bigpig/traceai/pkg/scope"
)

// Compile-time check that ScopeProcessor implements SpanProcessor.
var _ sdktrace.SpanProcessor = (*ScopeProcessor)(nil)

// ScopeProcessor stamps the active context scope on every span the provider
// starts, including spans created by code that does not go through Tracer.
type ScopeProcessor struct {
	masker *masking.Engine
}

// NewScopeProcessor creates a scope processor. masker may be nil.
func NewScopeProcessor(masker *masking.Engine) *ScopeProcessor {
	return &ScopeProcessor{masker: masker}
}

// OnStart implements sdktrace.SpanProcessor
func (p *ScopeProcessor) OnStart(ctx context.Context, span sdktrace.ReadWriteSpan) {
	current := scope.Current(ctx)
	if current.IsEmpty() {
		return
	}

	var attrs []attribute.KeyValue
	for key, value := range current.Pairs() {
		if p.masker != nil {
			value = p.masker.Mask(key, value)
		}
		if kv, ok := keyValue(key, value); ok {
			attrs = append(attrs, kv)
		}
	}
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// OnEnd implements sdktrace.SpanProcessor
func (p *ScopeProcessor) OnEnd(_ sdktrace.ReadOnlySpan) {}

// Shutdown implements sdktrace.SpanProcessor
func (p *ScopeProcessor) Shutdown(_ context.Context) error {
	return nil
}

// ForceFlush implements sdktrace.SpanProcessor
func (p *ScopeProcessor) ForceFlush(_ context.Context) error {
	return nil
}
