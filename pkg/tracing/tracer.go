package tracing

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/masking"
	"github.com/run-bigpig/traceai/pkg/scope"
)

// InstrumentationName names the OpenTelemetry tracer used when none is supplied
const InstrumentationName = "github.com/run-bigpig/traceai"

// Tracer starts spans wrapped in a SpanLifecycle, with the active context
// scope and the masking policy applied.
type Tracer struct {
	tracer   trace.Tracer
	masker   *masking.Engine
	logger   logging.Logger
	registry *Registry
}

// Option configures a Tracer
type Option func(*Tracer)

// WithMasking applies the given masking policy to every attribute
func WithMasking(cfg config.TraceConfig) Option {
	return func(t *Tracer) {
		t.masker = masking.New(cfg)
	}
}

// WithMaskingEngine shares an existing masking engine
func WithMaskingEngine(engine *masking.Engine) Option {
	return func(t *Tracer) {
		t.masker = engine
	}
}

// WithLogger sets the logger for instrumentation failures
func WithLogger(logger logging.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithRegistry sets the adapter registry consulted by the call helpers
func WithRegistry(registry *Registry) Option {
	return func(t *Tracer) {
		t.registry = registry
	}
}

// NewTracer creates a Tracer on top of tracer. A nil tracer uses the global provider.
func NewTracer(tracer trace.Tracer, opts ...Option) *Tracer {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	t := &Tracer{
		tracer: tracer,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.masker == nil {
		t.masker = masking.New(config.DefaultTraceConfig())
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	if t.registry == nil {
		t.registry = NewRegistry()
	}
	return t
}

// Registry returns the adapter registry
func (t *Tracer) Registry() *Registry {
	return t.registry
}

// Logger returns the instrumentation logger
func (t *Tracer) Logger() logging.Logger {
	return t.logger
}

// Start starts a span named name, records the active scope attributes and attrs on
// it, and returns the context carrying the span.
func (t *Tracer) Start(ctx context.Context, name string, attrs iter.Seq2[string, any], opts ...trace.SpanStartOption) (context.Context, *SpanLifecycle) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := t.tracer.Start(ctx, name, opts...)
	lc := NewSpanLifecycle(ctx, span, t.masker, t.logger)

	if current := scope.Current(ctx); !current.IsEmpty() {
		lc.SetAttributes(current.Pairs())
	}
	lc.SetAttributes(attrs)
	return ctx, lc
}
