package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/henomis/langfuse-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	otelsemconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/masking"
)

// Provider is a ready-to-use tracing setup: the SDK provider, the Tracer that
// adapters use and the adapter registry.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   *Tracer
	registry *Registry
}

// Tracer returns the Tracer bound to the provider
func (p *Provider) Tracer() *Tracer {
	return p.tracer
}

// Registry returns the adapter registry shared by the provider's Tracer
func (p *Provider) Registry() *Registry {
	return p.registry
}

// TracerProvider returns the underlying SDK provider
func (p *Provider) TracerProvider() *sdktrace.TracerProvider {
	return p.provider
}

// ForceFlush exports every finished span still buffered
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops every exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// RegisterOption customises Register
type RegisterOption func(*registerOptions)

type registerOptions struct {
	exporters  []sdktrace.SpanExporter
	processors []sdktrace.SpanProcessor
	sampler    sdktrace.Sampler
	logger     logging.Logger
	global     bool
	langfuse   LangfuseClient
}

// WithExporter adds an exporter, batched like the OTLP one
func WithExporter(exporter sdktrace.SpanExporter) RegisterOption {
	return func(o *registerOptions) {
		o.exporters = append(o.exporters, exporter)
	}
}

// WithSpanProcessor adds a span processor, for example a tracetest.SpanRecorder
func WithSpanProcessor(processor sdktrace.SpanProcessor) RegisterOption {
	return func(o *registerOptions) {
		o.processors = append(o.processors, processor)
	}
}

// WithSampler overrides the default parent-based always-on sampler
func WithSampler(sampler sdktrace.Sampler) RegisterOption {
	return func(o *registerOptions) {
		o.sampler = sampler
	}
}

// WithRegisterLogger sets the logger handed to the Tracer and exporters
func WithRegisterLogger(logger logging.Logger) RegisterOption {
	return func(o *registerOptions) {
		o.logger = logger
	}
}

// WithGlobal controls whether the provider becomes the global OpenTelemetry provider
func WithGlobal(global bool) RegisterOption {
	return func(o *registerOptions) {
		o.global = global
	}
}

// WithLangfuseClient uses client instead of langfuse.New when Langfuse export is enabled
func WithLangfuseClient(client LangfuseClient) RegisterOption {
	return func(o *registerOptions) {
		o.langfuse = client
	}
}

// Register builds a tracer provider from cfg: an OTLP/gRPC exporter when
// cfg.OTel is enabled, a Langfuse exporter when cfg.Langfuse is enabled, the
// scope processor and the masking policy in cfg.Masking.
func Register(ctx context.Context, cfg *config.Config, opts ...RegisterOption) (*Provider, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := registerOptions{global: true}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger
	if logger == nil {
		logger = logging.New(logging.WithLevel(cfg.Logging.Level))
	}

	exporters := options.exporters
	if cfg.OTel.Enabled {
		clientOpts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTel.CollectorEndpoint),
		}
		if cfg.OTel.Insecure {
			clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
		}
		if len(cfg.OTel.Headers) > 0 {
			clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.OTel.Headers))
		}

		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporters = append(exporters, exporter)
	}

	if cfg.Langfuse.Enabled {
		client := options.langfuse
		if client == nil {
			client = langfuse.New(ctx)
		}
		exporters = append(exporters, NewLangfuseExporter(client, cfg.Langfuse.Environment,
			WithLangfuseLogger(logger)))
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			otelsemconv.ServiceName(cfg.ServiceName),
			otelsemconv.ServiceInstanceID(uuid.NewString()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	masker := masking.New(cfg.Masking)
	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(NewScopeProcessor(masker)),
	}
	if options.sampler != nil {
		providerOpts = append(providerOpts, sdktrace.WithSampler(options.sampler))
	}
	for _, exporter := range exporters {
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	for _, processor := range options.processors {
		providerOpts = append(providerOpts, sdktrace.WithSpanProcessor(processor))
	}

	tp := sdktrace.NewTracerProvider(providerOpts...)
	if options.global {
		otel.SetTracerProvider(tp)
	}

	registry := NewRegistry()
	tracer := NewTracer(tp.Tracer(InstrumentationName),
		WithMaskingEngine(masker),
		WithLogger(logger),
		WithRegistry(registry),
	)

	logger.Info(ctx, "Tracing registered", map[string]interface{}{
		"service":   cfg.ServiceName,
		"otlp":      cfg.OTel.Enabled,
		"langfuse":  cfg.Langfuse.Enabled,
		"exporters": len(exporters),
	})

	return &Provider{
		provider: tp,
		tracer:   tracer,
		registry: registry,
	}, nil
}
