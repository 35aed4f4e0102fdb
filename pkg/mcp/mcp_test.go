package mcp

import (
	"context"
	"errors"
	"testing"

	mcplib "github.com/metoro-io/mcp-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

type fakeServer struct {
	tools    []interfaces.MCPTool
	response *interfaces.MCPToolResponse
	err      error
	lastArgs interface{}
	closed   bool
}

func (f *fakeServer) Initialize(context.Context) error { return nil }
func (f *fakeServer) ListTools(context.Context) ([]interfaces.MCPTool, error) {
	return f.tools, nil
}
func (f *fakeServer) CallTool(_ context.Context, _ string, args interface{}) (*interfaces.MCPToolResponse, error) {
	f.lastArgs = args
	return f.response, f.err
}
func (f *fakeServer) Close() error {
	f.closed = true
	return nil
}

func newTracer(t *testing.T) (*tracing.Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return tracing.NewTracer(provider.Tracer("mcp-test")), recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func weatherServer() *fakeServer {
	return &fakeServer{
		tools: []interfaces.MCPTool{{
			Name:        "get_weather",
			Description: "Current weather for a city",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"city":  map[string]interface{}{"type": "string", "description": "City name"},
					"units": map[string]interface{}{"type": "string", "enum": []string{"metric", "imperial"}},
				},
				"required": []string{"city"},
			},
		}},
		response: &interfaces.MCPToolResponse{Content: "sunny"},
	}
}

func TestTracedServerCallTool(t *testing.T) {
	tracer, recorder := newTracer(t)
	server := NewTracedServer(weatherServer(), tracer)

	_, err := server.ListTools(context.Background())
	require.NoError(t, err)
	resp, err := server.CallTool(context.Background(), "get_weather", map[string]interface{}{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "sunny", resp.Content)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "get_weather", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	values := attrs(spans[0])
	assert.Equal(t, semconv.SpanKindTool, values[semconv.SpanKind].AsString())
	assert.Equal(t, "get_weather", values[semconv.ToolName].AsString())
	assert.Equal(t, "Current weather for a city", values[semconv.ToolDescription].AsString())
	assert.Equal(t, semconv.MimeTypeJSON, values[semconv.InputMimeType].AsString())
	assert.JSONEq(t, `{"city":"Paris"}`, values[semconv.InputValue].AsString())
	assert.Equal(t, "sunny", values[semconv.OutputValue].AsString())
	_, isError := values[semconv.ToolIsError]
	assert.False(t, isError)
}

func TestTracedServerCallToolError(t *testing.T) {
	tracer, recorder := newTracer(t)
	fake := weatherServer()
	fake.response, fake.err = nil, errors.New("connection reset")
	server := NewTracedServer(fake, tracer)

	_, err := server.CallTool(context.Background(), "get_weather", nil)
	assert.Same(t, fake.err, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection reset", spans[0].Status().Description)

	require.NoError(t, server.Close())
	assert.True(t, fake.closed)
}

func TestTracedServerErrorResponse(t *testing.T) {
	tracer, recorder := newTracer(t)
	fake := weatherServer()
	fake.response = &interfaces.MCPToolResponse{Content: "unknown city", IsError: true}

	_, err := NewTracedServer(fake, tracer).CallTool(context.Background(), "get_weather", `{"city":"Atlantis"}`)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.True(t, attrs(spans[0])[semconv.ToolIsError].AsBool())
}

func TestTools(t *testing.T) {
	tracer, recorder := newTracer(t)
	fake := weatherServer()
	tools, err := Tools(context.Background(), NewTracedServer(fake, tracer))
	require.NoError(t, err)
	require.Len(t, tools, 1)

	tool := tools[0]
	assert.Equal(t, "get_weather", tool.Name())
	params := tool.Parameters()
	require.Len(t, params, 2)
	assert.True(t, params["city"].Required)
	assert.Equal(t, "City name", params["city"].Description)
	assert.False(t, params["units"].Required)
	assert.Equal(t, []interface{}{"metric", "imperial"}, params["units"].Enum)

	out, err := tool.Execute(context.Background(), `{"city":"Paris"}`)
	require.NoError(t, err)
	assert.Equal(t, "sunny", out)
	assert.Equal(t, map[string]interface{}{"city": "Paris"}, fake.lastArgs)
	assert.Len(t, recorder.Ended(), 1)

	fake.response = &interfaces.MCPToolResponse{Content: "unknown city", IsError: true}
	out, err = tool.Execute(context.Background(), `{"city":"Atlantis"}`)
	assert.EqualError(t, err, "unknown city")
	assert.Equal(t, "unknown city", out)

	_, err = tool.Execute(context.Background(), `not json`)
	assert.ErrorContains(t, err, "invalid arguments for tool get_weather")
}

func TestToolParametersWithoutSchema(t *testing.T) {
	tool := &Tool{spec: interfaces.MCPTool{Name: "ping", Schema: "opaque"}}
	assert.Empty(t, tool.Parameters())
}

func TestContentText(t *testing.T) {
	content := []*mcplib.Content{
		mcplib.NewTextContent("first"),
		nil,
		{Type: mcplib.ContentTypeImage},
		mcplib.NewTextContent("second"),
	}
	assert.Equal(t, "first\nsecond", contentText(content))
	assert.Empty(t, contentText(nil))
}

func TestNewStdioServerRequiresCommand(t *testing.T) {
	_, err := NewStdioServer(context.Background(), StdioServerConfig{})
	assert.EqualError(t, err, "command cannot be empty")

	_, err = NewStdioServer(context.Background(), StdioServerConfig{Command: "definitely-not-a-real-binary-name"})
	assert.ErrorContains(t, err, "invalid command")
}

func TestCloseWithoutProcess(t *testing.T) {
	assert.NoError(t, (&MCPServerImpl{}).Close())
}
