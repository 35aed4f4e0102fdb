package tracing

import (
	"context"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
)

var rerank = Operation[interfaces.RerankRequest, []interfaces.SearchResult]{
	Name:     "reranker.rerank",
	Adapter:  AdapterReranker,
	Request:  extractors.Rerank{},
	Response: extractors.Rerank{},
}

// RerankerOTelMiddleware wraps a Reranker with OpenTelemetry tracing
type RerankerOTelMiddleware struct {
	reranker interfaces.Reranker
	tracer   *Tracer
}

var _ interfaces.Reranker = (*RerankerOTelMiddleware)(nil)

// NewRerankerOTelMiddleware creates a new RerankerOTelMiddleware
func NewRerankerOTelMiddleware(reranker interfaces.Reranker, tracer *Tracer) *RerankerOTelMiddleware {
	return &RerankerOTelMiddleware{reranker: reranker, tracer: tracer}
}

// Rerank implements interfaces.Reranker
func (m *RerankerOTelMiddleware) Rerank(ctx context.Context, query string, documents []interfaces.Document, topK int) ([]interfaces.SearchResult, error) {
	req := interfaces.RerankRequest{
		Model:     m.reranker.Name(),
		Query:     query,
		Documents: documents,
		TopK:      topK,
	}
	return Call(ctx, m.tracer, rerank, req, func(ctx context.Context, req interfaces.RerankRequest) ([]interfaces.SearchResult, error) {
		return m.reranker.Rerank(ctx, req.Query, req.Documents, req.TopK)
	})
}

// Name implements interfaces.Reranker
func (m *RerankerOTelMiddleware) Name() string {
	return m.reranker.Name()
}
