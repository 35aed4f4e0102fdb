package tracing

import (
	"context"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
)

// Registry keys of the middlewares in this package
const (
	AdapterLLM         = "llm"
	AdapterTool        = "tool"
	AdapterVectorStore = "vectorstore"
	AdapterReranker    = "reranker"
)

// LLMOTelMiddleware wraps an LLM with OpenTelemetry tracing
type LLMOTelMiddleware struct {
	llm    interfaces.LLM
	tracer *Tracer
}

var _ interfaces.LLM = (*LLMOTelMiddleware)(nil)

// NewLLMOTelMiddleware creates a new LLMOTelMiddleware
func NewLLMOTelMiddleware(llm interfaces.LLM, tracer *Tracer) *LLMOTelMiddleware {
	return &LLMOTelMiddleware{
		llm:    llm,
		tracer: tracer,
	}
}

var llmGenerate = Operation[extractors.PromptRequest, string]{
	Name:     "llm.generate",
	Adapter:  AdapterLLM,
	Request:  extractors.Prompt{},
	Response: extractors.Prompt{},
}

var llmGenerateWithTools = Operation[extractors.PromptRequest, string]{
	Name:     "llm.generate_with_tools",
	Adapter:  AdapterLLM,
	Request:  extractors.Prompt{},
	Response: extractors.Prompt{},
}

// Generate implements interfaces.LLM.Generate
func (m *LLMOTelMiddleware) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	req := m.request(prompt, nil, options)
	return Call(ctx, m.tracer, llmGenerate, req, func(ctx context.Context, _ extractors.PromptRequest) (string, error) {
		return m.llm.Generate(ctx, prompt, options...)
	})
}

// GenerateWithTools implements interfaces.LLM.GenerateWithTools
func (m *LLMOTelMiddleware) GenerateWithTools(ctx context.Context, prompt string, tools []interfaces.Tool, options ...interfaces.GenerateOption) (string, error) {
	req := m.request(prompt, tools, options)
	return Call(ctx, m.tracer, llmGenerateWithTools, req, func(ctx context.Context, _ extractors.PromptRequest) (string, error) {
		return m.llm.GenerateWithTools(ctx, prompt, tools, options...)
	})
}

// Name implements interfaces.LLM.Name
func (m *LLMOTelMiddleware) Name() string {
	return m.llm.Name()
}

func (m *LLMOTelMiddleware) request(prompt string, tools []interfaces.Tool, options []interfaces.GenerateOption) extractors.PromptRequest {
	return extractors.PromptRequest{
		Provider: m.llm.Name(),
		Prompt:   prompt,
		Options:  interfaces.ApplyGenerateOptions(options...),
		Tools:    tools,
	}
}
