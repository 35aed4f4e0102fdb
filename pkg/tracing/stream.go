package tracing

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// StreamOption configures a traced stream
type StreamOption func(*streamOptions)

type streamOptions struct {
	idleTimeout time.Duration
	closer      func() error
}

// WithIdleTimeout finishes the span as incomplete when no chunk is pulled for
// d, then releases the wrapped receiver as Close would.
func WithIdleTimeout(d time.Duration) StreamOption {
	return func(o *streamOptions) {
		o.idleTimeout = d
	}
}

// WithCloser sets the function that releases the underlying stream on Close.
// Receivers implementing io.Closer are closed without this option.
func WithCloser(closer func() error) StreamOption {
	return func(o *streamOptions) {
		o.closer = closer
	}
}

// streamState is the chunk bookkeeping shared by Stream and ContextStream
type streamState[T any] struct {
	mu     sync.Mutex
	ctx    context.Context
	lc     *SpanLifecycle
	acc    interfaces.ResponseAccumulator[T]
	logger logging.Logger
	opts   streamOptions
	first  bool
	done   bool
	timer  *time.Timer

	release     func() error
	releaseOnce sync.Once
	releaseErr  error
}

func newStreamState[T any](ctx context.Context, lc *SpanLifecycle, src any, acc interfaces.ResponseAccumulator[T], logger logging.Logger, opts []StreamOption) *streamState[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if lc == nil {
		lc = NewSpanLifecycle(ctx, nil, nil, logger)
	}
	s := &streamState[T]{
		ctx:    ctx,
		lc:     lc,
		acc:    acc,
		logger: logger,
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.release = s.opts.closer
	if c, ok := src.(io.Closer); ok && s.release == nil {
		s.release = c.Close
	}
	s.done = lc.Finished()
	if !s.done && s.opts.idleTimeout > 0 {
		s.timer = time.AfterFunc(s.opts.idleTimeout, s.expire)
	}
	return s
}

// observe handles one successfully pulled chunk
func (s *streamState[T]) observe(chunk T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	if !s.first {
		s.first = true
		s.lc.AddEvent(semconv.FirstTokenEvent)
	}
	if s.timer != nil {
		s.timer.Reset(s.opts.idleTimeout)
	}
	if s.acc == nil {
		return
	}

	if err := s.process(chunk); err != nil {
		s.logger.Warn(s.ctx, "Failed to accumulate stream chunk", map[string]interface{}{"error": err.Error()})
	}
}

func (s *streamState[T]) process(chunk T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return s.acc.ProcessChunk(chunk)
}

// terminate handles the error that ended a pull. io.EOF finishes OK, anything
// else records the error and finishes ERROR.
func (s *streamState[T]) terminate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.stopTimer()

	switch {
	case errors.Is(err, io.EOF):
		s.lc.Finish(StatusOK(), s.attributes(), s.extraAttributes())
	case isCancellation(err):
		s.lc.RecordException(err)
		s.lc.SetAttribute(semconv.SpanCancelled, true)
		s.lc.Finish(StatusError(cancelledDescription), s.attributes(), s.extraAttributes())
	default:
		s.lc.RecordException(err)
		s.lc.Finish(StatusError(err.Error()), s.attributes(), s.extraAttributes())
	}
}

// abandon finishes the span without a status, marking it incomplete
func (s *streamState[T]) abandon(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.stopTimer()

	s.logger.Debug(s.ctx, "Stream finished before exhaustion", map[string]interface{}{"reason": reason})
	s.lc.SetAttribute(semconv.StreamIncomplete, true)
	s.lc.Finish(nil, s.attributes(), s.extraAttributes())
}

func (s *streamState[T]) expire() {
	s.abandon("idle timeout")
	if err := s.releaseSource(); err != nil {
		s.logger.Warn(s.ctx, "Failed to release idle stream", map[string]interface{}{"error": err.Error()})
	}
}

func (s *streamState[T]) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

// attributes and extraAttributes build the accumulator sequences lazily, so a
// panicking accumulator is recovered when Finish collects them.
func (s *streamState[T]) attributes() iter.Seq2[string, any] {
	if s.acc == nil {
		return nil
	}
	return deferred(s.acc.Attributes)
}

func (s *streamState[T]) extraAttributes() iter.Seq2[string, any] {
	if s.acc == nil {
		return nil
	}
	return deferred(s.acc.ExtraAttributes)
}

// releaseSource closes the wrapped receiver at most once
func (s *streamState[T]) releaseSource() error {
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.releaseErr = s.release()
		}
	})
	return s.releaseErr
}

func (s *streamState[T]) close() error {
	s.abandon("closed")
	return s.releaseSource()
}

// Stream wraps a pull-based response so that the owning span finishes exactly
// once, when the sequence ends, fails or is closed.
//
// Recv behaves exactly like the wrapped Receiver: chunks and errors are
// returned unchanged, and pulling past the end returns whatever the wrapped
// receiver returns.
type Stream[T any] struct {
	src   interfaces.Receiver[T]
	state *streamState[T]
}

// NewStream wraps src. acc may be nil when the chunks carry nothing worth recording.
func NewStream[T any](ctx context.Context, lc *SpanLifecycle, src interfaces.Receiver[T], acc interfaces.ResponseAccumulator[T], logger logging.Logger, opts ...StreamOption) *Stream[T] {
	return &Stream[T]{
		src:   src,
		state: newStreamState(ctx, lc, src, acc, logger, opts),
	}
}

// Recv pulls the next chunk
func (s *Stream[T]) Recv() (T, error) {
	chunk, err := s.src.Recv()
	if err != nil {
		s.state.terminate(err)
		return chunk, err
	}
	s.state.observe(chunk)
	return chunk, nil
}

// All ranges over the remaining chunks. A pull error other than io.EOF is
// yielded once as the final element. Breaking out of the loop closes the stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(chunk, err)
				return
			}
			if !yield(chunk, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

// Close finishes the span as incomplete if the sequence was not consumed to
// the end, then releases the wrapped receiver.
func (s *Stream[T]) Close() error {
	return s.state.close()
}

// Lifecycle returns the span lifecycle the stream finishes
func (s *Stream[T]) Lifecycle() *SpanLifecycle {
	return s.state.lc
}

// ContextStream is Stream for receivers whose pulls block on a context
type ContextStream[T any] struct {
	src   interfaces.ContextReceiver[T]
	state *streamState[T]
}

// NewContextStream wraps src. acc may be nil.
func NewContextStream[T any](ctx context.Context, lc *SpanLifecycle, src interfaces.ContextReceiver[T], acc interfaces.ResponseAccumulator[T], logger logging.Logger, opts ...StreamOption) *ContextStream[T] {
	return &ContextStream[T]{
		src:   src,
		state: newStreamState(ctx, lc, src, acc, logger, opts),
	}
}

// Recv pulls the next chunk. A pull interrupted by ctx finishes the span as cancelled.
func (s *ContextStream[T]) Recv(ctx context.Context) (T, error) {
	chunk, err := s.src.Recv(ctx)
	if err != nil {
		s.state.terminate(err)
		return chunk, err
	}
	s.state.observe(chunk)
	return chunk, nil
}

// All ranges over the remaining chunks, pulling with ctx
func (s *ContextStream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			chunk, err := s.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(chunk, err)
				return
			}
			if !yield(chunk, nil) {
				_ = s.Close()
				return
			}
		}
	}
}

// Close finishes the span as incomplete if needed and releases the receiver
func (s *ContextStream[T]) Close() error {
	return s.state.close()
}

// Lifecycle returns the span lifecycle the stream finishes
func (s *ContextStream[T]) Lifecycle() *SpanLifecycle {
	return s.state.lc
}
