package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/run-bigpig/traceai/pkg/interfaces"
)

// Tool exposes one MCP server tool as an interfaces.Tool
type Tool struct {
	server interfaces.MCPServer
	spec   interfaces.MCPTool
}

var _ interfaces.Tool = (*Tool)(nil)

// Tools lists the tools of server as interfaces.Tool values. Wrap server in a
// TracedServer first to trace their calls.
func Tools(ctx context.Context, server interfaces.MCPServer) ([]interfaces.Tool, error) {
	specs, err := server.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]interfaces.Tool, len(specs))
	for i, spec := range specs {
		tools[i] = &Tool{server: server, spec: spec}
	}
	return tools, nil
}

// Name implements interfaces.Tool
func (t *Tool) Name() string {
	return t.spec.Name
}

// Description implements interfaces.Tool
func (t *Tool) Description() string {
	return t.spec.Description
}

// Parameters implements interfaces.Tool. It reads the properties of a JSON
// schema object; other schemas yield no parameters.
func (t *Tool) Parameters() map[string]interfaces.ParameterSpec {
	var schema struct {
		Properties map[string]interfaces.ParameterSpec `json:"properties"`
		Required   []string                            `json:"required"`
	}
	raw, err := json.Marshal(t.spec.Schema)
	if err != nil || json.Unmarshal(raw, &schema) != nil {
		return map[string]interfaces.ParameterSpec{}
	}

	params := make(map[string]interfaces.ParameterSpec, len(schema.Properties))
	for name, spec := range schema.Properties {
		params[name] = spec
	}
	for _, name := range schema.Required {
		if spec, ok := params[name]; ok {
			spec.Required = true
			params[name] = spec
		}
	}
	return params
}

// Execute implements interfaces.Tool. args must be a JSON object; an MCP
// error response is returned as an error.
func (t *Tool) Execute(ctx context.Context, args string) (string, error) {
	var arguments map[string]interface{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &arguments); err != nil {
			return "", fmt.Errorf("invalid arguments for tool %s: %w", t.spec.Name, err)
		}
	}

	resp, err := t.server.CallTool(ctx, t.spec.Name, arguments)
	if err != nil {
		return "", err
	}
	if resp.IsError {
		return resp.Content, errors.New(resp.Content)
	}
	return resp.Content, nil
}
