package tracing

import (
	"context"
	"io"
	"iter"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecorder(t testing.TB, opts ...Option) (*Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return NewTracer(provider.Tracer("tracing-test"), opts...), recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func eventNames(span sdktrace.ReadOnlySpan) []string {
	var names []string
	for _, e := range span.Events() {
		names = append(names, e.Name)
	}
	return names
}

func pairs(kv ...any) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i := 0; i+1 < len(kv); i += 2 {
			if !yield(kv[i].(string), kv[i+1]) {
				return
			}
		}
	}
}

func panicking(kv ...any) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range pairs(kv...) {
			if !yield(k, v) {
				return
			}
		}
		panic("extractor bug")
	}
}

// chunkReceiver returns chunks in order, then failAt's error or io.EOF
type chunkReceiver struct {
	mu     sync.Mutex
	chunks []string
	err    error
	pos    int
	closed bool
}

func (r *chunkReceiver) Recv() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos < len(r.chunks) {
		chunk := r.chunks[r.pos]
		r.pos++
		return chunk, nil
	}
	if r.err != nil {
		return "", r.err
	}
	return "", io.EOF
}

func (r *chunkReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *chunkReceiver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
