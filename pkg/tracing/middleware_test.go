package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

type mockLLM struct {
	response string
	err      error
	options  interfaces.GenerateOptions
}

func (m *mockLLM) Generate(_ context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	m.options = interfaces.ApplyGenerateOptions(options...)
	return m.response, m.err
}

func (m *mockLLM) GenerateWithTools(ctx context.Context, prompt string, _ []interfaces.Tool, options ...interfaces.GenerateOption) (string, error) {
	return m.Generate(ctx, prompt, options...)
}

func (m *mockLLM) Name() string { return "mock" }

type mockTool struct {
	output string
	err    error
}

func (m *mockTool) Name() string        { return "calculator" }
func (m *mockTool) Description() string { return "adds numbers" }
func (m *mockTool) Parameters() map[string]interfaces.ParameterSpec {
	return map[string]interfaces.ParameterSpec{"a": {Type: "number", Required: true}}
}
func (m *mockTool) Execute(context.Context, string) (string, error) { return m.output, m.err }

type mockStore struct {
	results []interfaces.SearchResult
	deleted []string
}

func (m *mockStore) Name() string { return "memory" }
func (m *mockStore) Store(context.Context, []interfaces.Document, ...interfaces.StoreOption) error {
	return nil
}
func (m *mockStore) Search(context.Context, string, int, ...interfaces.SearchOption) ([]interfaces.SearchResult, error) {
	return m.results, nil
}
func (m *mockStore) SearchByVector(context.Context, []float32, int, ...interfaces.SearchOption) ([]interfaces.SearchResult, error) {
	return m.results, nil
}
func (m *mockStore) Delete(_ context.Context, ids []string, _ ...interfaces.DeleteOption) error {
	m.deleted = ids
	return nil
}

type mockReranker struct{}

func (mockReranker) Name() string { return "rerank-v1" }
func (mockReranker) Rerank(_ context.Context, _ string, documents []interfaces.Document, topK int) ([]interfaces.SearchResult, error) {
	var out []interfaces.SearchResult
	for i := len(documents) - 1; i >= 0 && len(out) < topK; i-- {
		out = append(out, interfaces.SearchResult{Document: documents[i], Score: float32(i + 1)})
	}
	return out, nil
}

func TestLLMOTelMiddleware(t *testing.T) {
	tracer, recorder := newRecorder(t)
	llm := &mockLLM{response: "Paris"}
	traced := NewLLMOTelMiddleware(llm, tracer)

	out, err := traced.Generate(context.Background(), "Capital of France?",
		interfaces.WithModel("gpt-4o"),
		interfaces.WithSystemMessage("be brief"),
		interfaces.WithTemperature(0.2),
	)
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)
	assert.Equal(t, "gpt-4o", llm.options.Model)
	assert.Equal(t, "mock", traced.Name())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate", spans[0].Name())
	values := attrs(spans[0])
	assert.Equal(t, semconv.SpanKindLLM, values[semconv.SpanKind].AsString())
	assert.Equal(t, "mock", values[semconv.LLMProvider].AsString())
	assert.Equal(t, "gpt-4o", values[semconv.LLMModelName].AsString())
	assert.Equal(t, "be brief", values[semconv.LLMSystemPrompt].AsString())
	assert.Equal(t, "system", values[semconv.InputMessage(0, semconv.MessageRole)].AsString())
	assert.Equal(t, "Capital of France?", values[semconv.InputMessage(1, semconv.MessageContent)].AsString())
	assert.JSONEq(t, `{"temperature":0.2}`, values[semconv.LLMInvocationParameters].AsString())
	assert.Equal(t, "Paris", values[semconv.OutputValue].AsString())
}

func TestLLMOTelMiddlewareError(t *testing.T) {
	tracer, recorder := newRecorder(t)
	boom := errors.New("quota exceeded")
	traced := NewLLMOTelMiddleware(&mockLLM{err: boom}, tracer)

	_, err := traced.GenerateWithTools(context.Background(), "hi", []interfaces.Tool{&mockTool{}})
	assert.Same(t, boom, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate_with_tools", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, attrs(spans[0])[semconv.Indexed(semconv.LLMTools, 0, semconv.ToolJSONSchema)].AsString(), `"calculator"`)
}

func TestToolOTelMiddleware(t *testing.T) {
	tracer, recorder := newRecorder(t)
	traced := NewToolOTelMiddleware(&mockTool{output: "3"}, tracer)

	out, err := traced.Execute(context.Background(), `{"a":1,"b":2}`)
	require.NoError(t, err)
	assert.Equal(t, "3", out)
	assert.Equal(t, "adds numbers", traced.Description())
	assert.Contains(t, traced.Parameters(), "a")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "calculator", spans[0].Name())
	values := attrs(spans[0])
	assert.Equal(t, semconv.SpanKindTool, values[semconv.SpanKind].AsString())
	assert.Equal(t, "calculator", values[semconv.ToolName].AsString())
	assert.Equal(t, `{"a":1,"b":2}`, values[semconv.InputValue].AsString())
	assert.Equal(t, "3", values[semconv.OutputValue].AsString())
}

func TestToolOTelMiddlewareError(t *testing.T) {
	tracer, recorder := newRecorder(t)
	boom := errors.New("division by zero")
	traced := NewToolOTelMiddleware(&mockTool{output: "partial", err: boom}, tracer)

	out, err := traced.Execute(context.Background(), "{}")
	assert.Same(t, boom, err)
	assert.Equal(t, "partial", out)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.True(t, attrs(spans[0])[semconv.ToolIsError].AsBool())
}

func TestVectorStoreOTelMiddleware(t *testing.T) {
	tracer, recorder := newRecorder(t)
	store := &mockStore{results: []interfaces.SearchResult{
		{Document: interfaces.Document{ID: "doc-1", Content: "Go is fun"}, Score: 0.9},
	}}
	traced := NewVectorStoreOTelMiddleware(store, tracer)
	ctx := context.Background()

	results, err := traced.Search(ctx, "golang", 5,
		interfaces.WithSearchClass("articles"),
		interfaces.WithMinScore(0.5),
		interfaces.WithFilters(map[string]interface{}{"lang": "go"}),
	)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	require.NoError(t, traced.Delete(ctx, []string{"doc-1"}, interfaces.WithDeleteClass("articles")))
	assert.Equal(t, []string{"doc-1"}, store.deleted)
	require.NoError(t, traced.Store(ctx, []interfaces.Document{{ID: "doc-2", Content: "Rust too"}},
		interfaces.WithClass("articles"),
		interfaces.WithBatchSize(100),
	))

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	search := attrs(spans[0])
	assert.Equal(t, "vectorstore.search", spans[0].Name())
	assert.Equal(t, semconv.SpanKindRetriever, search[semconv.SpanKind].AsString())
	assert.Equal(t, "memory", search[semconv.DBSystem].AsString())
	assert.Equal(t, "articles", search[semconv.DBCollection].AsString())
	assert.Equal(t, "golang", search[semconv.InputValue].AsString())
	assert.Equal(t, 0.5, search[semconv.DBMinScore].AsFloat64())
	assert.Equal(t, `{"lang":"go"}`, search[semconv.DBFilters].AsString())
	assert.Equal(t, "doc-1", search[semconv.Indexed(semconv.RetrievalDocuments, 0, semconv.DocumentID)].AsString())

	del := attrs(spans[1])
	assert.Equal(t, semconv.SpanKindVectorDB, del[semconv.SpanKind].AsString())
	assert.Equal(t, []string{"doc-1"}, del[semconv.DBIDs].AsStringSlice())

	stored := attrs(spans[2])
	assert.Equal(t, "vectorstore.store", spans[2].Name())
	assert.Equal(t, int64(100), stored[semconv.DBBatchSize].AsInt64())
	assert.Equal(t, "doc-2", stored[semconv.Indexed(semconv.RetrievalDocuments, 0, semconv.DocumentID)].AsString())
}

func TestRerankerOTelMiddleware(t *testing.T) {
	tracer, recorder := newRecorder(t)
	traced := NewRerankerOTelMiddleware(mockReranker{}, tracer)

	docs := []interfaces.Document{{ID: "a", Content: "first"}, {ID: "b", Content: "second"}}
	results, err := traced.Rerank(context.Background(), "query", docs, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Document.ID)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	values := attrs(spans[0])
	assert.Equal(t, semconv.SpanKindReranker, values[semconv.SpanKind].AsString())
	assert.Equal(t, "rerank-v1", values[semconv.RerankerModelName].AsString())
	assert.Equal(t, "query", values[semconv.RerankerQuery].AsString())
}
