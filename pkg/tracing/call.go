package tracing

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.opentelemetry.io/otel/trace"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

const cancelledDescription = "cancelled"

// Operation describes one kind of intercepted call returning a complete response
type Operation[P, R any] struct {
	// Name is the span name
	Name string

	// Adapter is the registry key; calls of a disabled adapter are not traced
	Adapter string

	Request  interfaces.RequestExtractor[P]
	Response interfaces.ResponseExtractor[R]

	// SpanOptions are passed to the underlying tracer
	SpanOptions []trace.SpanStartOption
}

// StreamOperation describes one kind of intercepted call returning a stream
type StreamOperation[P, T any] struct {
	Name    string
	Adapter string
	Request interfaces.RequestExtractor[P]

	// NewAccumulator creates the accumulator for one stream; may be nil
	NewAccumulator func() interfaces.ResponseAccumulator[T]

	SpanOptions   []trace.SpanStartOption
	StreamOptions []StreamOption
}

// Call traces fn as one span. The result and error of fn are returned
// unchanged; a panic in fn is recorded and re-raised.
func Call[P, R any](ctx context.Context, t *Tracer, op Operation[P, R], params P, fn func(context.Context, P) (R, error)) (R, error) {
	if t == nil || !t.registry.Enabled(op.Adapter) {
		return fn(ctx, params)
	}

	ctx, lc := start(ctx, t, op.Name, op.Request, params, op.SpanOptions)
	defer finishOnPanic(lc)

	result, err := fn(ctx, params)

	var attrs, extra iter.Seq2[string, any]
	if op.Response != nil {
		attrs = deferred(func() iter.Seq2[string, any] { return op.Response.ResponseAttributes(result, false) })
		extra = deferred(func() iter.Seq2[string, any] { return op.Response.ResponseExtraAttributes(result, false) })
	}
	lc.Finish(outcome(lc, err), attrs, extra)
	return result, err
}

// CallStream traces fn, whose result is streamed. When fn fails the span
// finishes immediately; otherwise it finishes when the returned Stream ends.
func CallStream[P, T any](ctx context.Context, t *Tracer, op StreamOperation[P, T], params P, fn func(context.Context, P) (interfaces.Receiver[T], error)) (*Stream[T], error) {
	if t == nil || !t.registry.Enabled(op.Adapter) {
		src, err := fn(ctx, params)
		if err != nil {
			return nil, err
		}
		return NewStream[T](ctx, nil, src, nil, nil, op.StreamOptions...), nil
	}

	ctx, lc := start(ctx, t, op.Name, op.Request, params, op.SpanOptions)
	defer finishOnPanic(lc)

	src, err := fn(ctx, params)
	if err != nil {
		lc.Finish(outcome(lc, err), nil, nil)
		return nil, err
	}
	return NewStream(ctx, lc, src, newAccumulator(op.NewAccumulator), t.logger, op.StreamOptions...), nil
}

// CallContextStream is CallStream for receivers whose pulls take a context
func CallContextStream[P, T any](ctx context.Context, t *Tracer, op StreamOperation[P, T], params P, fn func(context.Context, P) (interfaces.ContextReceiver[T], error)) (*ContextStream[T], error) {
	if t == nil || !t.registry.Enabled(op.Adapter) {
		src, err := fn(ctx, params)
		if err != nil {
			return nil, err
		}
		return NewContextStream[T](ctx, nil, src, nil, nil, op.StreamOptions...), nil
	}

	ctx, lc := start(ctx, t, op.Name, op.Request, params, op.SpanOptions)
	defer finishOnPanic(lc)

	src, err := fn(ctx, params)
	if err != nil {
		lc.Finish(outcome(lc, err), nil, nil)
		return nil, err
	}
	return NewContextStream(ctx, lc, src, newAccumulator(op.NewAccumulator), t.logger, op.StreamOptions...), nil
}

// start opens the span of one call and records both request sequences. Each
// sequence fails on its own: a panicking extractor only loses its own pairs.
func start[P any](ctx context.Context, t *Tracer, name string, extractor interfaces.RequestExtractor[P], params P, opts []trace.SpanStartOption) (context.Context, *SpanLifecycle) {
	ctx, lc := t.Start(ctx, name, nil, opts...)
	if extractor != nil {
		lc.SetAttributes(deferred(func() iter.Seq2[string, any] { return extractor.RequestAttributes(params) }))
		lc.SetAttributes(deferred(func() iter.Seq2[string, any] { return extractor.RequestExtraAttributes(params) }))
	}
	return ctx, lc
}

// deferred postpones building a sequence until it is ranged over, so a panic
// while building it is recovered with the rest of the collection.
func deferred(build func() iter.Seq2[string, any]) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		seq := build()
		if seq == nil {
			return
		}
		for k, v := range seq {
			if !yield(k, v) {
				return
			}
		}
	}
}

func newAccumulator[T any](factory func() interfaces.ResponseAccumulator[T]) interfaces.ResponseAccumulator[T] {
	if factory == nil {
		return nil
	}
	return factory()
}

// outcome records err on lc and returns the matching status
func outcome(lc *SpanLifecycle, err error) *Status {
	if err == nil {
		return StatusOK()
	}
	lc.RecordException(err)
	if isCancellation(err) {
		lc.SetAttribute(semconv.SpanCancelled, true)
		return StatusError(cancelledDescription)
	}
	return StatusError(err.Error())
}

// finishOnPanic ends the span of a call that panicked and re-raises the panic
func finishOnPanic(lc *SpanLifecycle) {
	if r := recover(); r != nil {
		err := panicError(r)
		lc.RecordException(err)
		lc.Finish(StatusError(err.Error()), nil, nil)
		panic(r)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}

// Concat yields every pair of each sequence in order
func Concat(seqs ...iter.Seq2[string, any]) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, seq := range seqs {
			if seq == nil {
				continue
			}
			for k, v := range seq {
				if !yield(k, v) {
					return
				}
			}
		}
	}
}
