package tracing

import (
	"context"

	"github.com/run-bigpig/traceai/pkg/extractors"
	"github.com/run-bigpig/traceai/pkg/interfaces"
)

// VectorStoreOTelMiddleware wraps a VectorStore with OpenTelemetry tracing.
// Searches are RETRIEVER spans; stores and deletes are VECTOR_DB spans.
type VectorStoreOTelMiddleware struct {
	store  interfaces.VectorStore
	tracer *Tracer
}

var _ interfaces.VectorStore = (*VectorStoreOTelMiddleware)(nil)

// NewVectorStoreOTelMiddleware creates a new VectorStoreOTelMiddleware
func NewVectorStoreOTelMiddleware(store interfaces.VectorStore, tracer *Tracer) *VectorStoreOTelMiddleware {
	return &VectorStoreOTelMiddleware{store: store, tracer: tracer}
}

func (m *VectorStoreOTelMiddleware) operation(op string) Operation[interfaces.VectorStoreRequest, []interfaces.SearchResult] {
	return Operation[interfaces.VectorStoreRequest, []interfaces.SearchResult]{
		Name:     "vectorstore." + op,
		Adapter:  AdapterVectorStore,
		Request:  extractors.VectorStore{},
		Response: extractors.VectorStore{},
	}
}

// Name implements interfaces.VectorStore
func (m *VectorStoreOTelMiddleware) Name() string {
	return m.store.Name()
}

// Store implements interfaces.VectorStore
func (m *VectorStoreOTelMiddleware) Store(ctx context.Context, documents []interfaces.Document, options ...interfaces.StoreOption) error {
	opts := interfaces.ApplyStoreOptions(options...)
	req := interfaces.VectorStoreRequest{
		System:     m.store.Name(),
		Operation:  interfaces.VectorStoreOpStore,
		Collection: opts.Class,
		BatchSize:  opts.BatchSize,
		Documents:  documents,
	}
	_, err := Call(ctx, m.tracer, m.operation(req.Operation), req, func(ctx context.Context, _ interfaces.VectorStoreRequest) ([]interfaces.SearchResult, error) {
		return nil, m.store.Store(ctx, documents, options...)
	})
	return err
}

// Search implements interfaces.VectorStore
func (m *VectorStoreOTelMiddleware) Search(ctx context.Context, query string, limit int, options ...interfaces.SearchOption) ([]interfaces.SearchResult, error) {
	opts := interfaces.ApplySearchOptions(options...)
	req := interfaces.VectorStoreRequest{
		System:     m.store.Name(),
		Operation:  interfaces.VectorStoreOpSearch,
		Collection: opts.Class,
		Query:      query,
		Limit:      limit,
		MinScore:   opts.MinScore,
		Filters:    opts.Filters,
	}
	return Call(ctx, m.tracer, m.operation(req.Operation), req, func(ctx context.Context, _ interfaces.VectorStoreRequest) ([]interfaces.SearchResult, error) {
		return m.store.Search(ctx, query, limit, options...)
	})
}

// SearchByVector implements interfaces.VectorStore
func (m *VectorStoreOTelMiddleware) SearchByVector(ctx context.Context, vector []float32, limit int, options ...interfaces.SearchOption) ([]interfaces.SearchResult, error) {
	opts := interfaces.ApplySearchOptions(options...)
	req := interfaces.VectorStoreRequest{
		System:     m.store.Name(),
		Operation:  interfaces.VectorStoreOpSearchByVector,
		Collection: opts.Class,
		Vector:     vector,
		Limit:      limit,
		MinScore:   opts.MinScore,
		Filters:    opts.Filters,
	}
	return Call(ctx, m.tracer, m.operation(req.Operation), req, func(ctx context.Context, _ interfaces.VectorStoreRequest) ([]interfaces.SearchResult, error) {
		return m.store.SearchByVector(ctx, vector, limit, options...)
	})
}

// Delete implements interfaces.VectorStore
func (m *VectorStoreOTelMiddleware) Delete(ctx context.Context, ids []string, options ...interfaces.DeleteOption) error {
	opts := interfaces.ApplyDeleteOptions(options...)
	req := interfaces.VectorStoreRequest{
		System:     m.store.Name(),
		Operation:  interfaces.VectorStoreOpDelete,
		Collection: opts.Class,
		IDs:        ids,
	}
	_, err := Call(ctx, m.tracer, m.operation(req.Operation), req, func(ctx context.Context, _ interfaces.VectorStoreRequest) ([]interfaces.SearchResult, error) {
		return nil, m.store.Delete(ctx, ids, options...)
	})
	return err
}
