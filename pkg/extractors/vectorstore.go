package extractors

import (
	"iter"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// VectorStore extracts attributes from vector store operations. Searches are
// recorded as RETRIEVER spans, writes and deletes as VECTOR_DB spans.
type VectorStore struct{}

var (
	_ interfaces.RequestExtractor[interfaces.VectorStoreRequest] = VectorStore{}
	_ interfaces.ResponseExtractor[[]interfaces.SearchResult]    = VectorStore{}
)

// RequestAttributes implements interfaces.RequestExtractor
func (VectorStore) RequestAttributes(req interfaces.VectorStoreRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		kind := semconv.SpanKindVectorDB
		switch req.Operation {
		case interfaces.VectorStoreOpSearch, interfaces.VectorStoreOpSearchByVector:
			kind = semconv.SpanKindRetriever
		}

		if !yield(semconv.SpanKind, kind) ||
			!yield(semconv.DBSystem, req.System) ||
			!yield(semconv.DBOperation, req.Operation) ||
			!yield(semconv.DBCollection, req.Collection) {
			return
		}
		if req.Limit > 0 && !yield(semconv.DBLimit, req.Limit) {
			return
		}
		if req.MinScore > 0 && !yield(semconv.DBMinScore, float64(req.MinScore)) {
			return
		}
		if len(req.Filters) > 0 && !yield(semconv.DBFilters, jsonValue(req.Filters)) {
			return
		}
		if req.BatchSize > 0 && !yield(semconv.DBBatchSize, req.BatchSize) {
			return
		}
		if len(req.IDs) > 0 {
			yield(semconv.DBIDs, req.IDs)
		}
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (VectorStore) RequestExtraAttributes(req interfaces.VectorStoreRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if req.Query != "" {
			if !yield(semconv.InputMimeType, semconv.MimeTypeText) || !yield(semconv.InputValue, req.Query) {
				return
			}
		}
		for i, doc := range req.Documents {
			if !document(yield, semconv.Indexed(semconv.RetrievalDocuments, i, ""), doc, nil) {
				return
			}
		}
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (VectorStore) ResponseAttributes(results []interfaces.SearchResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if len(results) > 0 {
			yield(semconv.OutputMimeType, semconv.MimeTypeJSON)
		}
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (VectorStore) ResponseExtraAttributes(results []interfaces.SearchResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i, result := range results {
			score := result.Score
			if !document(yield, semconv.Indexed(semconv.RetrievalDocuments, i, ""), result.Document, &score) {
				return
			}
		}
	}
}
