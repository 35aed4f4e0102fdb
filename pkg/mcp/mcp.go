// Package mcp connects to Model Context Protocol servers and traces the tool
// calls made through them.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	mcplib "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport"
	"github.com/metoro-io/mcp-golang/transport/http"
	"github.com/metoro-io/mcp-golang/transport/stdio"

	"github.com/run-bigpig/traceai/pkg/interfaces"
)

// MCPServerImpl is the mcp-golang backed implementation of interfaces.MCPServer
type MCPServerImpl struct {
	client *mcplib.Client
	cmd    *exec.Cmd
}

var _ interfaces.MCPServer = (*MCPServerImpl)(nil)

// NewMCPServer creates an initialized MCPServer on the given transport
func NewMCPServer(ctx context.Context, transport transport.Transport) (*MCPServerImpl, error) {
	server := &MCPServerImpl{client: mcplib.NewClient(transport)}
	if err := server.Initialize(ctx); err != nil {
		return nil, err
	}
	return server, nil
}

// Initialize initializes the connection to the MCP server
func (s *MCPServerImpl) Initialize(ctx context.Context) error {
	if _, err := s.client.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize mcp client: %w", err)
	}
	return nil
}

// ListTools lists the tools available on the MCP server
func (s *MCPServerImpl) ListTools(ctx context.Context) ([]interfaces.MCPTool, error) {
	resp, err := s.client.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list mcp tools: %w", err)
	}

	tools := make([]interfaces.MCPTool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		description := ""
		if t.Description != nil {
			description = *t.Description
		}
		tools = append(tools, interfaces.MCPTool{
			Name:        t.Name,
			Description: description,
			Schema:      t.InputSchema,
		})
	}
	return tools, nil
}

// CallTool calls a tool on the MCP server. Text content parts are joined in
// order; other content types are skipped.
func (s *MCPServerImpl) CallTool(ctx context.Context, name string, args interface{}) (*interfaces.MCPToolResponse, error) {
	resp, err := s.client.CallTool(ctx, name, args)
	if err != nil {
		return nil, err
	}
	// mcp-golang has no isError flag on tool responses
	return &interfaces.MCPToolResponse{Content: contentText(resp.Content)}, nil
}

// Close stops the server process of a stdio connection
func (s *MCPServerImpl) Close() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to stop mcp server: %w", err)
	}
	_ = s.cmd.Wait()
	return nil
}

func contentText(content []*mcplib.Content) string {
	var b strings.Builder
	for _, c := range content {
		if c == nil || c.Type != mcplib.ContentTypeText || c.TextContent == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.TextContent.Text)
	}
	return b.String()
}

// StdioServerConfig holds configuration for a stdio MCP server
type StdioServerConfig struct {
	Command string
	Args    []string
	Env     []string
}

// NewStdioServer starts config.Command and talks MCP over its stdio
func NewStdioServer(ctx context.Context, config StdioServerConfig) (*MCPServerImpl, error) {
	if config.Command == "" {
		return nil, fmt.Errorf("command cannot be empty")
	}

	commandPath, err := exec.LookPath(config.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid command %q: %w", config.Command, err)
	}

	// #nosec
	cmd := exec.CommandContext(ctx, commandPath, config.Args...)
	if len(config.Env) > 0 {
		cmd.Env = append(os.Environ(), config.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	server, err := NewMCPServer(ctx, stdio.NewStdioServerTransportWithIO(stdout, stdin))
	if err != nil {
		if killErr := cmd.Process.Kill(); killErr != nil {
			return nil, fmt.Errorf("failed to create server: %v and failed to kill process: %v", err, killErr)
		}
		return nil, err
	}
	server.cmd = cmd
	return server, nil
}

// HTTPServerConfig holds configuration for an HTTP MCP server
type HTTPServerConfig struct {
	BaseURL string
	Path    string
	Token   string
}

// NewHTTPServer creates a new MCPServer that communicates over HTTP
func NewHTTPServer(ctx context.Context, config HTTPServerConfig) (*MCPServerImpl, error) {
	transport := http.NewHTTPClientTransport(config.Path).WithBaseURL(config.BaseURL)
	if config.Token != "" {
		transport.WithHeader("Authorization", "Bearer "+config.Token)
	}
	return NewMCPServer(ctx, transport)
}
