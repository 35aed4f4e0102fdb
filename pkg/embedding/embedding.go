// Package embedding generates text embeddings through the traced OpenAI
// client, so every request is recorded as an EMBEDDING span.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	tracedopenai "github.com/run-bigpig/traceai/pkg/instrumentation/openai"
)

// Similarity metrics accepted by Similarity
const (
	Cosine     = "cosine"
	Euclidean  = "euclidean"
	DotProduct = "dot_product"
)

// Config contains configuration options for embedding generation
type Config struct {
	// Model is the embedding model to use
	Model string

	// Dimensions shortens the vectors; only text-embedding-3-* models support it
	Dimensions int

	// Metric is the default similarity metric
	Metric string

	// UserID is forwarded to the API for abuse monitoring
	UserID string
}

// DefaultConfig returns the configuration used for model, or
// text-embedding-3-small when model is empty
func DefaultConfig(model string) Config {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return Config{Model: model, Metric: Cosine}
}

// Client defines the interface for an embedding client
type Client interface {
	// Embed generates an embedding for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder implements Client on the OpenAI embeddings API
type OpenAIEmbedder struct {
	client *tracedopenai.Client
	config Config
}

var _ Client = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder sending requests through client
func NewOpenAIEmbedder(client *tracedopenai.Client, config Config) *OpenAIEmbedder {
	defaults := DefaultConfig(config.Model)
	config.Model = defaults.Model
	if config.Metric == "" {
		config.Metric = defaults.Metric
	}
	return &OpenAIEmbedder{client: client, config: config}
}

// Config returns the embedder configuration
func (e *OpenAIEmbedder) Config() Config {
	return e.config
}

// Embed implements Client
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements Client
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.config.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.config.Dimensions,
		User:           e.config.UserID,
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned from API")
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, fmt.Errorf("invalid embedding index: %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	for i, vector := range embeddings {
		if vector == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}
	return embeddings, nil
}

// Similarity compares two vectors with metric, or the configured metric
// when metric is empty
func (e *OpenAIEmbedder) Similarity(a, b []float32, metric string) (float32, error) {
	if metric == "" {
		metric = e.config.Metric
	}
	return Similarity(a, b, metric)
}

// Similarity compares two vectors of equal length. Euclidean distance is
// mapped to a score in (0, 1].
func Similarity(a, b []float32, metric string) (float32, error) {
	if len(a) != len(b) {
		return 0, errors.New("embedding vectors must have the same dimensions")
	}

	var dot, normA, normB, dist float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
		dist += (x - y) * (x - y)
	}

	switch metric {
	case Cosine:
		if normA == 0 || normB == 0 {
			return 0, nil
		}
		return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
	case Euclidean:
		return float32(1 / (1 + math.Sqrt(dist))), nil
	case DotProduct:
		return float32(dot), nil
	default:
		return 0, fmt.Errorf("unsupported similarity metric: %s", metric)
	}
}
