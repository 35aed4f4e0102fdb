package tracing

import (
	"context"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
)

// ToolOTelMiddleware wraps a Tool so that every Execute is a TOOL span
type ToolOTelMiddleware struct {
	tool   interfaces.Tool
	tracer *Tracer
}

var _ interfaces.Tool = (*ToolOTelMiddleware)(nil)

// NewToolOTelMiddleware creates a new ToolOTelMiddleware
func NewToolOTelMiddleware(tool interfaces.Tool, tracer *Tracer) *ToolOTelMiddleware {
	return &ToolOTelMiddleware{tool: tool, tracer: tracer}
}

// Name implements interfaces.Tool
func (m *ToolOTelMiddleware) Name() string {
	return m.tool.Name()
}

// Description implements interfaces.Tool
func (m *ToolOTelMiddleware) Description() string {
	return m.tool.Description()
}

// Parameters implements interfaces.Tool
func (m *ToolOTelMiddleware) Parameters() map[string]interfaces.ParameterSpec {
	return m.tool.Parameters()
}

// Execute implements interfaces.Tool. The output and error of the wrapped tool
// are returned unchanged.
func (m *ToolOTelMiddleware) Execute(ctx context.Context, args string) (string, error) {
	op := Operation[interfaces.ToolCall, interfaces.ToolResult]{
		Name:     m.tool.Name(),
		Adapter:  AdapterTool,
		Request:  extractors.Tool{},
		Response: extractors.Tool{},
	}
	call := interfaces.ToolCall{
		Name:        m.tool.Name(),
		Description: m.tool.Description(),
		Arguments:   args,
	}

	var output string
	_, err := Call(ctx, m.tracer, op, call, func(ctx context.Context, _ interfaces.ToolCall) (interfaces.ToolResult, error) {
		var err error
		output, err = m.tool.Execute(ctx, args)
		return interfaces.ToolResult{Output: output, IsError: err != nil}, err
	})
	return output, err
}
