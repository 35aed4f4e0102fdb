package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	tracedopenai "github.com/run-bigpig/traceai/pkg/instrumentation/openai"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

func newEmbedder(t *testing.T, config Config, data []openai.Embedding) (*OpenAIEmbedder, *tracetest.SpanRecorder, *openai.EmbeddingRequestStrings) {
	t.Helper()
	received := &openai.EmbeddingRequestStrings{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(received))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{Object: "list", Data: data, Model: openai.SmallEmbedding3})
	}))
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	client := tracedopenai.NewClient(openai.NewClientWithConfig(cfg), tracing.NewTracer(provider.Tracer("embedding-test")))
	return NewOpenAIEmbedder(client, config), recorder, received
}

func TestEmbedBatchOrdersByIndex(t *testing.T) {
	embedder, recorder, received := newEmbedder(t, Config{Dimensions: 2, UserID: "u1"}, []openai.Embedding{
		{Index: 1, Embedding: []float32{0, 1}},
		{Index: 0, Embedding: []float32{1, 0}},
	})

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)

	assert.Equal(t, []string{"first", "second"}, received.Input)
	assert.Equal(t, openai.SmallEmbedding3, received.Model)
	assert.Equal(t, 2, received.Dimensions)
	assert.Equal(t, "u1", received.User)
	assert.Len(t, recorder.Ended(), 1)
}

func TestEmbed(t *testing.T) {
	embedder, _, _ := newEmbedder(t, DefaultConfig(""), []openai.Embedding{{Index: 0, Embedding: []float32{0.5}}})

	vector, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vector)
	assert.Equal(t, Cosine, embedder.Config().Metric)
}

func TestEmbedBatchRejectsBadIndexes(t *testing.T) {
	embedder, _, _ := newEmbedder(t, Config{}, []openai.Embedding{{Index: 3, Embedding: []float32{1}}})
	_, err := embedder.EmbedBatch(context.Background(), []string{"a"})
	assert.EqualError(t, err, "invalid embedding index: 3")

	embedder, _, _ = newEmbedder(t, Config{}, []openai.Embedding{{Index: 0, Embedding: []float32{1}}})
	_, err = embedder.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.EqualError(t, err, "missing embedding for input 1")

	vectors, err := embedder.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		metric string
		a, b   []float32
		want   float32
	}{
		{Cosine, []float32{1, 0}, []float32{1, 0}, 1},
		{Cosine, []float32{1, 0}, []float32{0, 1}, 0},
		{Cosine, []float32{0, 0}, []float32{0, 1}, 0},
		{Euclidean, []float32{1, 1}, []float32{1, 1}, 1},
		{Euclidean, []float32{0, 0}, []float32{3, 4}, 1.0 / 6},
		{DotProduct, []float32{1, 2}, []float32{3, 4}, 11},
	}
	for _, tt := range tests {
		got, err := Similarity(tt.a, tt.b, tt.metric)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-6, tt.metric)
	}

	_, err := Similarity([]float32{1}, []float32{1, 2}, Cosine)
	assert.Error(t, err)
	_, err = Similarity([]float32{1}, []float32{1}, "manhattan")
	assert.EqualError(t, err, "unsupported similarity metric: manhattan")

	embedder := &OpenAIEmbedder{config: Config{Metric: DotProduct}}
	got, err := embedder.Similarity([]float32{2}, []float32{3}, "")
	require.NoError(t, err)
	assert.InDelta(t, 6, got, 1e-6)
}
