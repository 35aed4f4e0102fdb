// Package openai traces calls made through the go-openai client.
//
// Chat completions and embeddings become LLM and EMBEDDING spans. Streamed
// chat completions are returned as a tracing.Stream whose span finishes when
// the stream is exhausted, fails or is closed.
package openai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

// AdapterName is the registry key of this adapter
const AdapterName = "openai"

// Span names
const (
	ChatCompletionSpan = "ChatCompletion"
	EmbeddingsSpan     = "CreateEmbeddings"
)

// Client is a traced go-openai client
type Client struct {
	client      *openai.Client
	tracer      *tracing.Tracer
	provider    string
	idleTimeout time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithProvider sets the llm.provider attribute, e.g. extractors.ProviderAzure
func WithProvider(provider string) Option {
	return func(c *Client) {
		c.provider = provider
	}
}

// WithStreamIdleTimeout finishes the span of a stream nobody pulled from for d
func WithStreamIdleTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

// NewClient wraps client. A nil tracer disables tracing.
func NewClient(client *openai.Client, tracer *tracing.Tracer, opts ...Option) *Client {
	c := &Client{
		client:   client,
		tracer:   tracer,
		provider: extractors.ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Unwrap returns the wrapped go-openai client
func (c *Client) Unwrap() *openai.Client {
	return c.client
}

// CreateChatCompletion traces openai.Client.CreateChatCompletion
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	chat := extractors.Chat{Provider: c.provider}
	op := tracing.Operation[openai.ChatCompletionRequest, openai.ChatCompletionResponse]{
		Name:     ChatCompletionSpan,
		Adapter:  AdapterName,
		Request:  chat,
		Response: chat,
	}
	return tracing.Call(ctx, c.tracer, op, req, c.client.CreateChatCompletion)
}

// CreateChatCompletionStream traces openai.Client.CreateChatCompletionStream.
// The caller must drain or Close the returned stream.
func (c *Client) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*tracing.Stream[openai.ChatCompletionStreamResponse], error) {
	req.Stream = true

	var stream *openai.ChatCompletionStream
	streamOpts := []tracing.StreamOption{
		tracing.WithCloser(func() error {
			if stream != nil {
				stream.Close()
			}
			return nil
		}),
	}
	if c.idleTimeout > 0 {
		streamOpts = append(streamOpts, tracing.WithIdleTimeout(c.idleTimeout))
	}

	op := tracing.StreamOperation[openai.ChatCompletionRequest, openai.ChatCompletionStreamResponse]{
		Name:           ChatCompletionSpan,
		Adapter:        AdapterName,
		Request:        extractors.Chat{Provider: c.provider},
		NewAccumulator: extractors.NewChatStreamAccumulator,
		StreamOptions:  streamOpts,
	}
	return tracing.CallStream(ctx, c.tracer, op, req, func(ctx context.Context, req openai.ChatCompletionRequest) (interfaces.Receiver[openai.ChatCompletionStreamResponse], error) {
		var err error
		stream, err = c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return nil, err
		}
		return stream, nil
	})
}

// CreateEmbeddings traces openai.Client.CreateEmbeddings
func (c *Client) CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
	embedding := extractors.Embedding{Provider: c.provider}
	op := tracing.Operation[openai.EmbeddingRequest, openai.EmbeddingResponse]{
		Name:     EmbeddingsSpan,
		Adapter:  AdapterName,
		Request:  embedding,
		Response: embedding,
	}
	return tracing.Call(ctx, c.tracer, op, req, func(ctx context.Context, req openai.EmbeddingRequest) (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, req)
	})
}
