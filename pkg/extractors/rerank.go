package extractors

import (
	"iter"

	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/semconv"
)

// Rerank extracts attributes from reranker calls
type Rerank struct{}

var (
	_ interfaces.RequestExtractor[interfaces.RerankRequest]   = Rerank{}
	_ interfaces.ResponseExtractor[[]interfaces.SearchResult] = Rerank{}
)

// RequestAttributes implements interfaces.RequestExtractor
func (Rerank) RequestAttributes(req interfaces.RerankRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		_ = yield(semconv.SpanKind, semconv.SpanKindReranker) &&
			yield(semconv.RerankerModelName, req.Model) &&
			yield(semconv.RerankerTopK, req.TopK) &&
			yield(semconv.InputMimeType, semconv.MimeTypeText)
	}
}

// RequestExtraAttributes implements interfaces.RequestExtractor
func (Rerank) RequestExtraAttributes(req interfaces.RerankRequest) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if !yield(semconv.InputValue, req.Query) || !yield(semconv.RerankerQuery, req.Query) {
			return
		}
		for i, doc := range req.Documents {
			if !document(yield, semconv.Indexed(semconv.RerankerInputDocuments, i, ""), doc, nil) {
				return
			}
		}
	}
}

// ResponseAttributes implements interfaces.ResponseExtractor
func (Rerank) ResponseAttributes(results []interfaces.SearchResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		if len(results) > 0 {
			yield(semconv.OutputMimeType, semconv.MimeTypeJSON)
		}
	}
}

// ResponseExtraAttributes implements interfaces.ResponseExtractor
func (Rerank) ResponseExtraAttributes(results []interfaces.SearchResult, _ bool) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for i, result := range results {
			score := result.Score
			if !document(yield, semconv.Indexed(semconv.RerankerOutputDocuments, i, ""), result.Document, &score) {
				return
			}
		}
	}
}

// document yields the fields of one document under prefix
func document(yield emit, prefix string, doc interfaces.Document, score *float32) bool {
	field := func(name string) string { return prefix + "." + name }

	if doc.ID != "" && !yield(field(semconv.DocumentID), doc.ID) {
		return false
	}
	if doc.Content != "" && !yield(field(semconv.DocumentContent), doc.Content) {
		return false
	}
	if score != nil && !yield(field(semconv.DocumentScore), float64(*score)) {
		return false
	}
	if len(doc.Metadata) > 0 && !yield(field(semconv.DocumentMetadata), jsonValue(doc.Metadata)) {
		return false
	}
	return true
}
