package extractors

import (
	"iter"

	openai "github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Chat extracts attributes from chat completion calls
type Chat struct {
	// Provider is recorded as llm.provider, defaults to ProviderOpenAI
	Provider string
}

var (
	_ interfaces.RequestExtractor[openai.ChatCompletionRequest]   = Chat{}
	_ interfaces.ResponseExtractor[openai.ChatCompletionResponse] = Chat{}
)

func (c Chat) provider() string {
	if c.Provider == "" {
		return ProviderOpenAI
	}
	return c.Provider
}

// RequestAttributes implements interfaces.RequestExtractor
func (c Chat) RequestAttributes(req openai.ChatCompletionRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		_ = yield(semconv.SpanKind, semconv.SpanKindLLM) &&
			yield(semconv.LLMProvider, c.provider()) &&
			yield(semconv.LLMSystem, ProviderOpenAI) &&
			yield(semconv.LLMModelName, req.Model) &&
			yield(semconv.InputMimeType, semconv.MimeTypeJSON) &&
			yield(semconv.LLMInvocationParameters, jsonValue(invocationParameters(req)))
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (c Chat) RequestExtraAttributes(req openai.ChatCompletionRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if !yield(semconv.InputValue, jsonValue(req)) {
			return
		}
		for i, msg := range req.Messages {
			if !message(yield, semconv.InputMessage(i, ""), msg) {
				return
			}
		}
		for _, msg := range req.Messages {
			if msg.Role == openai.ChatMessageRoleSystem && msg.Content != "" {
				if !yield(semconv.LLMSystemPrompt, msg.Content) {
					return
				}
				break
			}
		}
		for i, tool := range req.Tools {
			if !yield(semconv.Indexed(semconv.LLMTools, i, semconv.ToolJSONSchema), jsonValue(tool)) {
				return
			}
		}
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (c Chat) ResponseAttributes(resp openai.ChatCompletionResponse, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if resp.Model != "" && !yield(semconv.LLMModelName, resp.Model) {
			return
		}
		if len(resp.Choices) > 0 {
			if !yield(semconv.OutputMimeType, semconv.MimeTypeJSON) {
				return
			}
			if reason := resp.Choices[0].FinishReason; reason != "" && !yield(semconv.LLMFinishReason, string(reason)) {
				return
			}
		}
		usage(yield, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (c Chat) ResponseExtraAttributes(resp openai.ChatCompletionResponse, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if resp.ID == "" && len(resp.Choices) == 0 {
			return
		}
		if !yield(semconv.OutputValue, jsonValue(resp)) {
			return
		}
		for _, choice := range resp.Choices {
			if !message(yield, semconv.OutputMessage(choice.Index, ""), choice.Message) {
				return
			}
		}
	}
}

// message yields the fields of one chat message under prefix
func message(yield emit, prefix string, msg openai.ChatCompletionMessage) bool {
	field := func(name string) string { return prefix + "." + name }

	if !yield(field(semconv.MessageRole), msg.Role) {
		return false
	}
	if msg.Content != "" && !yield(field(semconv.MessageContent), msg.Content) {
		return false
	}
	if msg.Name != "" && !yield(field(semconv.MessageName), msg.Name) {
		return false
	}
	if msg.ToolCallID != "" && !yield(field(semconv.MessageToolCallID), msg.ToolCallID) {
		return false
	}
	for j, part := range msg.MultiContent {
		if !yield(semconv.MessageContentPart(prefix, j, semconv.MessageContentType), string(part.Type)) {
			return false
		}
		switch part.Type {
		case openai.ChatMessagePartTypeText:
			if !yield(semconv.MessageContentPart(prefix, j, semconv.MessageContentText), part.Text) {
				return false
			}
		case openai.ChatMessagePartTypeImageURL:
			if part.ImageURL == nil {
				continue
			}
			key := semconv.MessageContentPart(prefix, j, semconv.MessageContentImage+"."+semconv.ImageURL)
			if !yield(key, part.ImageURL.URL) {
				return false
			}
		}
	}
	for j, call := range msg.ToolCalls {
		if !toolCall(yield, prefix, j, call.ID, call.Function.Name, call.Function.Arguments) {
			return false
		}
	}
	return true
}

func toolCall(yield emit, prefix string, j int, id, name, arguments string) bool {
	if id != "" && !yield(semconv.MessageToolCall(prefix, j, semconv.ToolCallID), id) {
		return false
	}
	if !yield(semconv.MessageToolCall(prefix, j, semconv.ToolCallFunctionName), name) {
		return false
	}
	return yield(semconv.MessageToolCall(prefix, j, semconv.ToolCallFunctionArgs), arguments)
}

// invocationParameters keeps the sampling parameters that were actually set
func invocationParameters(req openai.ChatCompletionRequest) map[string]any {
	params := map[string]any{"model": req.Model}
	if req.MaxTokens > 0 {
		params["max_tokens"] = req.MaxTokens
	}
	if req.MaxCompletionTokens > 0 {
		params["max_completion_tokens"] = req.MaxCompletionTokens
	}
	if req.Temperature != 0 {
		params["temperature"] = req.Temperature
	}
	if req.TopP != 0 {
		params["top_p"] = req.TopP
	}
	if req.N > 0 {
		params["n"] = req.N
	}
	if len(req.Stop) > 0 {
		params["stop"] = req.Stop
	}
	if req.PresencePenalty != 0 {
		params["presence_penalty"] = req.PresencePenalty
	}
	if req.FrequencyPenalty != 0 {
		params["frequency_penalty"] = req.FrequencyPenalty
	}
	if req.Seed != nil {
		params["seed"] = *req.Seed
	}
	if req.ResponseFormat != nil {
		params["response_format"] = req.ResponseFormat.Type
	}
	if req.ToolChoice != nil {
		params["tool_choice"] = req.ToolChoice
	}
	if req.Stream {
		params["stream"] = true
	}
	return params
}
