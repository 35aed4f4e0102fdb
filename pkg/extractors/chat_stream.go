package extractors

import (
	"iter"
	"maps"
	"slices"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

var _ interfaces.ResponseAccumulator[openai.ChatCompletionStreamResponse] = (*ChatStream)(nil)

type streamedToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

type streamedChoice struct {
	role         string
	content      strings.Builder
	finishReason string
	toolCalls    map[int]*streamedToolCall
}

// ChatStream accumulates streamed chat completion chunks. Content deltas are
// concatenated per choice in the order they were pulled.
type ChatStream struct {
	model   string
	choices map[int]*streamedChoice
	usage   *openai.Usage
}

// NewChatStream creates an accumulator for one streamed chat completion
func NewChatStream() *ChatStream {
	return &ChatStream{choices: make(map[int]*streamedChoice)}
}

// NewChatStreamAccumulator is NewChatStream typed for tracing.StreamOperation
func NewChatStreamAccumulator() interfaces.ResponseAccumulator[openai.ChatCompletionStreamResponse] {
	return NewChatStream()
}

// ProcessChunk implements interfaces.ResponseAccumulator
func (a *ChatStream) ProcessChunk(chunk openai.ChatCompletionStreamResponse) error {
	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.usage = &u
	}

	for _, delta := range chunk.Choices {
		choice, ok := a.choices[delta.Index]
		if !ok {
			choice = &streamedChoice{toolCalls: make(map[int]*streamedToolCall)}
			a.choices[delta.Index] = choice
		}
		if delta.Delta.Role != "" {
			choice.role = delta.Delta.Role
		}
		choice.content.WriteString(delta.Delta.Content)
		if delta.FinishReason != "" {
			choice.finishReason = string(delta.FinishReason)
		}

		for pos, call := range delta.Delta.ToolCalls {
			index := pos
			if call.Index != nil {
				index = *call.Index
			}
			tc, ok := choice.toolCalls[index]
			if !ok {
				tc = &streamedToolCall{}
				choice.toolCalls[index] = tc
			}
			if call.ID != "" {
				tc.id = call.ID
			}
			if call.Function.Name != "" {
				tc.name = call.Function.Name
			}
			tc.arguments.WriteString(call.Function.Arguments)
		}
	}
	return nil
}

// Content returns the text accumulated so far for the first choice
func (a *ChatStream) Content() string {
	if choice, ok := a.choices[0]; ok {
		return choice.content.String()
	}
	return ""
}

// Attributes implements interfaces.ResponseAccumulator
func (a *ChatStream) Attributes() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if a.model != "" && !yield(semconv.LLMModelName, a.model) {
			return
		}
		if len(a.choices) > 0 && !yield(semconv.OutputMimeType, semconv.MimeTypeText) {
			return
		}
		if choice, ok := a.choices[0]; ok && choice.finishReason != "" {
			if !yield(semconv.LLMFinishReason, choice.finishReason) {
				return
			}
		}
		if a.usage != nil {
			usage(yield, a.usage.PromptTokens, a.usage.CompletionTokens, a.usage.TotalTokens)
		}
	}
}

// ExtraAttributes implements interfaces.ResponseAccumulator
func (a *ChatStream) ExtraAttributes() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if len(a.choices) == 0 {
			return
		}
		if !yield(semconv.OutputValue, a.Content()) {
			return
		}

		indexes := slices.Sorted(maps.Keys(a.choices))
		for _, i := range indexes {
			choice := a.choices[i]
			prefix := semconv.OutputMessage(i, "")
			role := choice.role
			if role == "" {
				role = openai.ChatMessageRoleAssistant
			}
			if !yield(prefix+"."+semconv.MessageRole, role) {
				return
			}
			if choice.content.Len() > 0 && !yield(prefix+"."+semconv.MessageContent, choice.content.String()) {
				return
			}
			for j, k := range slices.Sorted(maps.Keys(choice.toolCalls)) {
				tc := choice.toolCalls[k]
				if !toolCall(yield, prefix, j, tc.id, tc.name, tc.arguments.String()) {
					return
				}
			}
		}
	}
}
