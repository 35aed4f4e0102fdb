package interfaces

import "context"

// Reranker reorders candidate documents by relevance to a query
type Reranker interface {
	// Rerank returns at most topK documents, most relevant first
	Rerank(ctx context.Context, query string, documents []Document, topK int) ([]SearchResult, error)

	// Name returns the reranking model name
	Name() string
}

// RerankRequest is one Rerank call as seen by the tracing layer
type RerankRequest struct {
	Model     string
	Query     string
	Documents []Document
	TopK      int
}
