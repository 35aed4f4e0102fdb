// Package extractors turns SDK request and response objects into span attributes.
//
// There is one tagged implementation per call kind. Every extractor is
// stateless, yields lazily and yields nothing, rather than panicking, for a
// zero or partially populated response. Large payloads are yielded as lazy
// producers so that masked keys are never serialized.
package extractors

import (
	"encoding/json"
	"iter"

	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Provider names recorded under semconv.LLMProvider
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// emit is the yield function of an attribute sequence
type emit = func(key string, value any) bool

// jsonValue defers JSON serialization of v until the value is recorded
func jsonValue(v any) func() (any, error) {
	return func() (any, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
}

// usage yields token counts. The total is the sum of its parts whenever both
// parts are known; the reported total is used only as a fallback.
func usage(yield emit, prompt, completion, total int) bool {
	if prompt > 0 && !yield(semconv.LLMTokenCountPrompt, prompt) {
		return false
	}
	if completion > 0 && !yield(semconv.LLMTokenCountCompletion, completion) {
		return false
	}
	if prompt > 0 && completion > 0 {
		total = prompt + completion
	}
	if total > 0 {
		return yield(semconv.LLMTokenCountTotal, total)
	}
	return true
}

// Empty yields nothing
func Empty() iter.Seq2[string, any] {
	return func(func(string, any) bool) {}
}
