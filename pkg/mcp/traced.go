package mcp

import (
	"context"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

// AdapterName is the registry key of MCP tracing
const AdapterName = "mcp"

// TracedServer records every CallTool of the wrapped server as a TOOL span
type TracedServer struct {
	server interfaces.MCPServer
	tracer *tracing.Tracer
	tools  map[string]string
}

var _ interfaces.MCPServer = (*TracedServer)(nil)

// NewTracedServer wraps server. A nil tracer disables tracing.
func NewTracedServer(server interfaces.MCPServer, tracer *tracing.Tracer) *TracedServer {
	return &TracedServer{server: server, tracer: tracer, tools: map[string]string{}}
}

// Initialize implements interfaces.MCPServer
func (s *TracedServer) Initialize(ctx context.Context) error {
	return s.server.Initialize(ctx)
}

// ListTools implements interfaces.MCPServer. Listed descriptions are
// recorded on later calls of the same tool.
func (s *TracedServer) ListTools(ctx context.Context) ([]interfaces.MCPTool, error) {
	tools, err := s.server.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	descriptions := make(map[string]string, len(tools))
	for _, tool := range tools {
		descriptions[tool.Name] = tool.Description
	}
	s.tools = descriptions
	return tools, nil
}

// CallTool implements interfaces.MCPServer
func (s *TracedServer) CallTool(ctx context.Context, name string, args interface{}) (*interfaces.MCPToolResponse, error) {
	op := tracing.Operation[interfaces.ToolCall, *interfaces.MCPToolResponse]{
		Name:     name,
		Adapter:  AdapterName,
		Request:  extractors.Tool{},
		Response: extractors.MCPTool{},
	}
	call := interfaces.ToolCall{
		Name:        name,
		Description: s.tools[name],
		Arguments:   args,
	}
	return tracing.Call(ctx, s.tracer, op, call, func(ctx context.Context, call interfaces.ToolCall) (*interfaces.MCPToolResponse, error) {
		return s.server.CallTool(ctx, call.Name, call.Arguments)
	})
}

// Close implements interfaces.MCPServer
func (s *TracedServer) Close() error {
	return s.server.Close()
}
