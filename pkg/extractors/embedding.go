package extractors

import (
	"iter"

	openai "github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Embedding extracts attributes from embedding calls
type Embedding struct {
	Provider string
}

var (
	_ interfaces.RequestExtractor[openai.EmbeddingRequest]   = Embedding{}
	_ interfaces.ResponseExtractor[openai.EmbeddingResponse] = Embedding{}
)

// RequestAttributes implements interfaces.RequestExtractor
func (e Embedding) RequestAttributes(req openai.EmbeddingRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		provider := e.Provider
		if provider == "" {
			provider = ProviderOpenAI
		}
		params := map[string]any{"model": string(req.Model)}
		if req.EncodingFormat != "" {
			params["encoding_format"] = string(req.EncodingFormat)
		}
		if req.Dimensions > 0 {
			params["dimensions"] = req.Dimensions
		}

		_ = yield(semconv.SpanKind, semconv.SpanKindEmbedding) &&
			yield(semconv.LLMProvider, provider) &&
			yield(semconv.LLMSystem, ProviderOpenAI) &&
			yield(semconv.EmbeddingModelName, string(req.Model)) &&
			yield(semconv.InputMimeType, semconv.MimeTypeJSON) &&
			yield(semconv.LLMInvocationParameters, jsonValue(params))
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (e Embedding) RequestExtraAttributes(req openai.EmbeddingRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		texts := embeddingTexts(req.Input)
		if len(texts) == 0 {
			return
		}
		if !yield(semconv.InputValue, jsonValue(texts)) {
			return
		}
		for i, text := range texts {
			if !yield(semconv.Indexed(semconv.EmbeddingEmbeddings, i, semconv.EmbeddingText), text) {
				return
			}
		}
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (e Embedding) ResponseAttributes(resp openai.EmbeddingResponse, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if resp.Model != "" && !yield(semconv.EmbeddingModelName, string(resp.Model)) {
			return
		}
		usage(yield, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (e Embedding) ResponseExtraAttributes(resp openai.EmbeddingResponse, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, data := range resp.Data {
			if !yield(semconv.Indexed(semconv.EmbeddingEmbeddings, data.Index, semconv.EmbeddingVector), data.Embedding) {
				return
			}
		}
	}
}

// embeddingTexts normalises the accepted input shapes to a list of strings.
// Token arrays are not text and are skipped.
func embeddingTexts(input any) []string {
	switch v := input.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
