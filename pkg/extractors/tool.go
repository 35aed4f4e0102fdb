package extractors

import (
	"iter"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Tool extracts attributes from tool runs
type Tool struct{}

var (
	_ interfaces.RequestExtractor[interfaces.ToolCall]    = Tool{}
	_ interfaces.ResponseExtractor[interfaces.ToolResult] = Tool{}
)

// RequestAttributes implements interfaces.RequestExtractor
func (Tool) RequestAttributes(call interfaces.ToolCall) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		_ = yield(semconv.SpanKind, semconv.SpanKindTool) &&
			yield(semconv.ToolName, call.Name) &&
			yield(semconv.ToolDescription, call.Description) &&
			yield(semconv.InputMimeType, mimeTypeOf(call.Arguments))
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (Tool) RequestExtraAttributes(call interfaces.ToolCall) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		args := textValue(call.Arguments)
		_ = yield(semconv.InputValue, args) &&
			yield(semconv.ToolParameters, args)
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (Tool) ResponseAttributes(result interfaces.ToolResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if result.Output != "" && !yield(semconv.OutputMimeType, semconv.MimeTypeText) {
			return
		}
		if result.IsError {
			yield(semconv.ToolIsError, true)
		}
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (Tool) ResponseExtraAttributes(result interfaces.ToolResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		yield(semconv.OutputValue, result.Output)
	}
}

// MCPTool extracts attributes from MCP tool calls
type MCPTool struct {
	Tool
}

var _ interfaces.ResponseExtractor[*interfaces.MCPToolResponse] = MCPTool{}

// ResponseAttributes implements interfaces.ResponseExtractor
func (t MCPTool) ResponseAttributes(resp *interfaces.MCPToolResponse, streaming bool) iter.Seq2[string, any] {
	if resp == nil {
		return Empty()
	}
	return t.Tool.ResponseAttributes(interfaces.ToolResult{Output: resp.Content, IsError: resp.IsError}, streaming)
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (t MCPTool) ResponseExtraAttributes(resp *interfaces.MCPToolResponse, streaming bool) iter.Seq2[string, any] {
	if resp == nil {
		return Empty()
	}
	return t.Tool.ResponseExtraAttributes(interfaces.ToolResult{Output: resp.Content, IsError: resp.IsError}, streaming)
}

// textValue renders tool arguments as recorded text
func textValue(v any) any {
	switch a := v.(type) {
	case nil:
		return nil
	case string:
		return a
	case []byte:
		return string(a)
	default:
		return jsonValue(a)
	}
}

func mimeTypeOf(v any) string {
	switch a := v.(type) {
	case nil:
		return ""
	case string:
		if len(a) > 0 && (a[0] == '{' || a[0] == '[') {
			return semconv.MimeTypeJSON
		}
		return semconv.MimeTypeText
	case []byte:
		return semconv.MimeTypeText
	default:
		return semconv.MimeTypeJSON
	}
}
