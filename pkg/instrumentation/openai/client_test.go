package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/run-bigpig/traceai/pkg/config"
	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/instrumentation/openai"
	"github.com/run-bigpig/traceai/pkg/semconv"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

func setup(t *testing.T, handler http.HandlerFunc, opts ...tracing.Option) (*openai.Client, *tracetest.SpanRecorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := gopenai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	tracer := tracing.NewTracer(provider.Tracer("openai-test"), opts...)
	return openai.NewClient(gopenai.NewClientWithConfig(cfg), tracer), recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestCreateChatCompletion(t *testing.T) {
	client, recorder := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header with test-key")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gopenai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-2024-08-06",
			Choices: []gopenai.ChatCompletionChoice{{
				Message:      gopenai.ChatCompletionMessage{Role: "assistant", Content: "Hi there"},
				FinishReason: gopenai.FinishReasonStop,
			}},
			Usage: gopenai.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
		})
	})

	resp, err := client.CreateChatCompletion(context.Background(), gopenai.ChatCompletionRequest{
		Model: "gpt-4o",
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: "be nice"},
			{Role: gopenai.ChatMessageRoleUser, Content: "Hello"},
		},
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", resp.Choices[0].Message.Content)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, openai.ChatCompletionSpan, span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	values := attrs(span)
	assert.Equal(t, semconv.SpanKindLLM, values[semconv.SpanKind].AsString())
	assert.Equal(t, extractors.ProviderOpenAI, values[semconv.LLMProvider].AsString())
	assert.Equal(t, "gpt-4o-2024-08-06", values[semconv.LLMModelName].AsString())
	assert.Equal(t, "system", values[semconv.InputMessage(0, semconv.MessageRole)].AsString())
	assert.Equal(t, "Hello", values[semconv.InputMessage(1, semconv.MessageContent)].AsString())
	assert.Equal(t, "be nice", values[semconv.LLMSystemPrompt].AsString())
	assert.Equal(t, "Hi there", values[semconv.OutputMessage(0, semconv.MessageContent)].AsString())
	assert.Equal(t, int64(5), values[semconv.LLMTokenCountPrompt].AsInt64())
	assert.Equal(t, int64(2), values[semconv.LLMTokenCountCompletion].AsInt64())
	assert.Equal(t, int64(7), values[semconv.LLMTokenCountTotal].AsInt64())
	assert.JSONEq(t, `{"model":"gpt-4o","temperature":0.5}`, values[semconv.LLMInvocationParameters].AsString())
}

func TestCreateChatCompletionError(t *testing.T) {
	client, recorder := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
	})

	_, err := client.CreateChatCompletion(context.Background(), gopenai.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []gopenai.ChatCompletionMessage{{Role: "user", Content: "Hello"}},
	})
	var apiErr *gopenai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.HTTPStatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, err.Error(), spans[0].Status().Description)
}

func streamHandler(chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range chunks {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}
}

func TestCreateChatCompletionStream(t *testing.T) {
	client, recorder := setup(t, streamHandler(
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`,
	))

	stream, err := client.CreateChatCompletionStream(context.Background(), gopenai.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []gopenai.ChatCompletionMessage{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)
	assert.Empty(t, recorder.Ended())

	var content string
	for chunk, err := range stream.All() {
		require.NoError(t, err)
		for _, choice := range chunk.Choices {
			content += choice.Delta.Content
		}
	}
	assert.Equal(t, "Hello", content)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Ok, span.Status().Code)
	values := attrs(span)
	assert.Equal(t, "Hello", values[semconv.OutputValue].AsString())
	assert.Equal(t, "stop", values[semconv.LLMFinishReason].AsString())
	assert.Equal(t, int64(6), values[semconv.LLMTokenCountTotal].AsInt64())
	assert.Equal(t, semconv.FirstTokenEvent, span.Events()[0].Name)
}

func TestCreateChatCompletionStreamClosedEarly(t *testing.T) {
	client, recorder := setup(t, streamHandler(
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"partial"}}]}`,
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":" rest"}}]}`,
	))

	stream, err := client.CreateChatCompletionStream(context.Background(), gopenai.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []gopenai.ChatCompletionMessage{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)
	require.NoError(t, stream.Close())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	values := attrs(spans[0])
	assert.True(t, values[semconv.StreamIncomplete].AsBool())
	assert.Equal(t, "partial", values[semconv.OutputValue].AsString())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestCreateEmbeddings(t *testing.T) {
	cfg := config.DefaultTraceConfig()
	cfg.HideEmbeddingVectors = true
	client, recorder := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gopenai.EmbeddingResponse{
			Object: "list",
			Model:  gopenai.SmallEmbedding3,
			Data: []gopenai.Embedding{
				{Object: "embedding", Index: 0, Embedding: []float32{0.1, 0.2}},
			},
			Usage: gopenai.Usage{PromptTokens: 3, TotalTokens: 3},
		})
	}, tracing.WithMasking(cfg))

	resp, err := client.CreateEmbeddings(context.Background(), gopenai.EmbeddingRequest{
		Input: []string{"hello world"},
		Model: gopenai.SmallEmbedding3,
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	values := attrs(spans[0])
	assert.Equal(t, openai.EmbeddingsSpan, spans[0].Name())
	assert.Equal(t, semconv.SpanKindEmbedding, values[semconv.SpanKind].AsString())
	assert.Equal(t, string(gopenai.SmallEmbedding3), values[semconv.EmbeddingModelName].AsString())
	assert.Equal(t, "hello world", values[semconv.Indexed(semconv.EmbeddingEmbeddings, 0, semconv.EmbeddingText)].AsString())
	assert.Equal(t, semconv.RedactedValue, values[semconv.Indexed(semconv.EmbeddingEmbeddings, 0, semconv.EmbeddingVector)].AsString())
	assert.Equal(t, int64(3), values[semconv.LLMTokenCountPrompt].AsInt64())
}

func TestDisabledAdapter(t *testing.T) {
	client, recorder := setup(t, streamHandler(
		`{"id":"1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"x"}}]}`,
	))
	tracer := tracing.NewTracer(nil)
	tracer.Registry().Disable(openai.AdapterName)
	untraced := openai.NewClient(client.Unwrap(), tracer)

	stream, err := untraced.CreateChatCompletionStream(context.Background(), gopenai.ChatCompletionRequest{
		Model:    "gpt-4o",
		Messages: []gopenai.ChatCompletionMessage{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)
	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "x", chunk.Choices[0].Delta.Content)
	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.Empty(t, recorder.Ended())
}
