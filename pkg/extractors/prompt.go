package extractors

import (
	"iter"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// PromptRequest is one interfaces.LLM call as seen by the tracing layer
type PromptRequest struct {
	Provider string
	Prompt   string
	Options  interfaces.GenerateOptions
	Tools    []interfaces.Tool
}

// Prompt extracts attributes from interfaces.LLM calls
type Prompt struct{}

var (
	_ interfaces.RequestExtractor[PromptRequest] = Prompt{}
	_ interfaces.ResponseExtractor[string]       = Prompt{}
)

// RequestAttributes implements interfaces.RequestExtractor
func (Prompt) RequestAttributes(req PromptRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if !yield(semconv.SpanKind, semconv.SpanKindLLM) ||
			!yield(semconv.LLMProvider, req.Provider) ||
			!yield(semconv.LLMModelName, req.Options.Model) ||
			!yield(semconv.InputMimeType, semconv.MimeTypeText) {
			return
		}
		if cfg := req.Options.LLMConfig; cfg != nil {
			yield(semconv.LLMInvocationParameters, jsonValue(generateParameters(cfg)))
		}
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (Prompt) RequestExtraAttributes(req PromptRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if !yield(semconv.InputValue, req.Prompt) {
			return
		}

		i := 0
		if system := req.Options.SystemMessage; system != "" {
			if !yield(semconv.LLMSystemPrompt, system) ||
				!yield(semconv.InputMessage(i, semconv.MessageRole), "system") ||
				!yield(semconv.InputMessage(i, semconv.MessageContent), system) {
				return
			}
			i++
		}
		if !yield(semconv.InputMessage(i, semconv.MessageRole), "user") ||
			!yield(semconv.InputMessage(i, semconv.MessageContent), req.Prompt) {
			return
		}

		for j, tool := range req.Tools {
			if tool == nil {
				continue
			}
			schema := map[string]any{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			}
			if !yield(semconv.Indexed(semconv.LLMTools, j, semconv.ToolJSONSchema), jsonValue(schema)) {
				return
			}
		}
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (Prompt) ResponseAttributes(response string, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if response != "" {
			yield(semconv.OutputMimeType, semconv.MimeTypeText)
		}
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (Prompt) ResponseExtraAttributes(response string, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if response == "" {
			return
		}
		_ = yield(semconv.OutputValue, response) &&
			yield(semconv.OutputMessage(0, semconv.MessageRole), "assistant") &&
			yield(semconv.OutputMessage(0, semconv.MessageContent), response)
	}
}

func generateParameters(cfg *interfaces.LLMConfig) map[string]any {
	params := make(map[string]any)
	if cfg.Temperature != 0 {
		params["temperature"] = cfg.Temperature
	}
	if cfg.TopP != 0 {
		params["top_p"] = cfg.TopP
	}
	if cfg.FrequencyPenalty != 0 {
		params["frequency_penalty"] = cfg.FrequencyPenalty
	}
	if cfg.PresencePenalty != 0 {
		params["presence_penalty"] = cfg.PresencePenalty
	}
	if cfg.MaxTokens > 0 {
		params["max_tokens"] = cfg.MaxTokens
	}
	if len(cfg.StopSequences) > 0 {
		params["stop"] = cfg.StopSequences
	}
	return params
}
