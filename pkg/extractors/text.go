package extractors

import (
	"iter"
	"strings"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

var _ interfaces.ResponseAccumulator[string] = (*Text)(nil)

// Text accumulates a stream of plain text chunks
type Text struct {
	b      strings.Builder
	chunks int
}

// NewText creates an accumulator for one text stream
func NewText() *Text {
	return &Text{}
}

// NewTextAccumulator is NewText typed for tracing.StreamOperation
func NewTextAccumulator() interfaces.ResponseAccumulator[string] {
	return NewText()
}

// ProcessChunk implements interfaces.ResponseAccumulator
func (a *Text) ProcessChunk(chunk string) error {
	a.b.WriteString(chunk)
	a.chunks++
	return nil
}

// String returns the text accumulated so far
func (a *Text) String() string {
	return a.b.String()
}

// Attributes implements interfaces.ResponseAccumulator
func (a *Text) Attributes() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a.chunks > 0 {
			yield(semconv.OutputMimeType, semconv.MimeTypeText)
		}
	}
}

// ExtraAttributes implements interfaces.ResponseAccumulator
func (a *Text) ExtraAttributes() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a.chunks == 0 {
			return
		}
		text := a.b.String()
		_ = yield(semconv.OutputValue, text) &&
			yield(semconv.OutputMessage(0, semconv.MessageRole), "assistant") &&
			yield(semconv.OutputMessage(0, semconv.MessageContent), text)
	}
}
