package interfaces

import (
	"context"
	"iter"
)

// RequestExtractor turns the parameters of an intercepted call into span attributes.
//
// RequestAttributes yields small, structural attributes (span kind, provider,
// model, mime types, invocation parameters). RequestExtraAttributes yields the
// payload (messages, tools, system prompt, rendered input value). Both sequences
// are lazy; a panic while producing them is treated as "no attributes".
type RequestExtractor[P any] interface {
	RequestAttributes(params P) iter.Seq2[string, any]
	RequestExtraAttributes(params P) iter.Seq2[string, any]
}

// ResponseExtractor turns the result of an intercepted call into span attributes.
// It must yield nothing, rather than panic, for a missing or partial response.
type ResponseExtractor[R any] interface {
	ResponseAttributes(response R, streaming bool) iter.Seq2[string, any]
	ResponseExtraAttributes(response R, streaming bool) iter.Seq2[string, any]
}

// ResponseAccumulator builds span attributes from a streamed response, one chunk
// at a time. One accumulator serves exactly one stream.
type ResponseAccumulator[T any] interface {
	// ProcessChunk folds the next chunk, in pull order, into the accumulated state
	ProcessChunk(chunk T) error

	// Attributes returns the structural attributes of the accumulated response
	Attributes() iter.Seq2[string, any]

	// ExtraAttributes returns the payload attributes of the accumulated response
	ExtraAttributes() iter.Seq2[string, any]
}

// Receiver is a finite, pull-based sequence of chunks. Recv returns io.EOF once
// the sequence is exhausted.
type Receiver[T any] interface {
	Recv() (T, error)
}

// ContextReceiver is a pull-based sequence whose pulls may block and be cancelled
type ContextReceiver[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// ReceiverFunc adapts a function to Receiver
type ReceiverFunc[T any] func() (T, error)

// Recv implements Receiver
func (f ReceiverFunc[T]) Recv() (T, error) {
	return f()
}

// ContextReceiverFunc adapts a function to ContextReceiver
type ContextReceiverFunc[T any] func(ctx context.Context) (T, error)

// Recv implements ContextReceiver
func (f ContextReceiverFunc[T]) Recv(ctx context.Context) (T, error) {
	return f(ctx)
}
