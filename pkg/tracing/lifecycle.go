package tracing

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/masking"
)

// Status is the final status applied to a span on Finish
type Status struct {
	Code        codes.Code
	Description string
}

// StatusOK marks a successful call
func StatusOK() *Status {
	return &Status{Code: codes.Ok}
}

// StatusError marks a failed call with a short description
func StatusError(description string) *Status {
	return &Status{Code: codes.Error, Description: description}
}

// SpanLifecycle owns one span and guarantees it is ended exactly once.
//
// Every mutator is a no-op once the span is finished. Spans that are not
// recording when the lifecycle is created (sampled out, already ended) start
// finished. Failures inside the lifecycle are logged and swallowed.
type SpanLifecycle struct {
	mu       sync.Mutex
	ctx      context.Context
	span     trace.Span
	masker   *masking.Engine
	logger   logging.Logger
	finished bool
}

// NewSpanLifecycle wraps span. ctx is only used to correlate log entries.
func NewSpanLifecycle(ctx context.Context, span trace.Span, masker *masking.Engine, logger logging.Logger) *SpanLifecycle {
	if ctx == nil {
		ctx = context.Background()
	}
	if span == nil {
		span = trace.SpanFromContext(context.Background())
	}
	if masker == nil {
		masker = masking.New(config.DefaultTraceConfig())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SpanLifecycle{
		ctx:      ctx,
		span:     span,
		masker:   masker,
		logger:   logger,
		finished: !span.IsRecording(),
	}
}

// Span returns the underlying span
func (l *SpanLifecycle) Span() trace.Span {
	return l.span
}

// Finished reports whether the span has been ended
func (l *SpanLifecycle) Finished() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.finished
}

// SetAttribute masks and records one attribute
func (l *SpanLifecycle) SetAttribute(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.apply([]pair{{key: key, value: value}})
}

// SetAttributes masks and records every attribute attrs yields. A panicking
// sequence records nothing.
func (l *SpanLifecycle) SetAttributes(attrs iter.Seq2[string, any]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	pairs, err := collect(attrs)
	if err != nil {
		l.logger.Warn(l.ctx, "Failed to collect span attributes", map[string]interface{}{"error": err.Error()})
		return
	}
	l.apply(pairs)
}

// AddEvent records a named event on the span
func (l *SpanLifecycle) AddEvent(name string, attrs ...attribute.KeyValue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.guard("add span event", func() {
		l.span.AddEvent(name, trace.WithAttributes(attrs...))
	})
}

// RecordException records err on the span
func (l *SpanLifecycle) RecordException(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.guard("record exception", func() {
		l.span.RecordError(err, trace.WithStackTrace(false))
	})
}

// Finish applies attributes then extra (later values win), sets status when
// it is not nil and ends the span. Only the first call has any effect.
func (l *SpanLifecycle) Finish(status *Status, attributes, extra iter.Seq2[string, any]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished {
		return
	}
	l.finished = true

	primary, err := collect(attributes)
	if err != nil {
		l.logger.Warn(l.ctx, "Failed to collect span attributes", map[string]interface{}{"error": err.Error()})
	}
	secondary, err := collect(extra)
	if err != nil {
		l.logger.Warn(l.ctx, "Failed to collect extra span attributes", map[string]interface{}{"error": err.Error()})
	}
	l.apply(merge(primary, secondary))

	if status != nil {
		l.guard("set span status", func() {
			l.span.SetStatus(status.Code, status.Description)
		})
	}
	l.guard("end span", func() {
		l.span.End()
	})
}

// apply masks and records pairs. Callers hold l.mu.
func (l *SpanLifecycle) apply(pairs []pair) {
	if len(pairs) == 0 {
		return
	}
	kvs := make([]attribute.KeyValue, 0, len(pairs))
	for _, p := range pairs {
		l.guard("mask attribute "+p.key, func() {
			if kv, ok := keyValue(p.key, l.masker.Mask(p.key, p.value)); ok {
				kvs = append(kvs, kv)
			}
		})
	}
	if len(kvs) == 0 {
		return
	}
	l.guard("set span attributes", func() {
		l.span.SetAttributes(kvs...)
	})
}

// guard runs fn, logging instead of propagating a panic
func (l *SpanLifecycle) guard(action string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(l.ctx, "Failed to "+action, map[string]interface{}{
				"error": fmt.Sprint(r),
			})
		}
	}()
	fn()
}
