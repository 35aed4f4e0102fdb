package interfaces

import (
	"context"
)

// Document represents a document to be stored in a vector store
type Document struct {
	// ID is the unique identifier for the document
	ID string

	// Content is the text content of the document
	Content string

	// Vector is the embedding vector for the document
	// If nil, the vector store will generate it
	Vector []float32

	// Metadata contains additional information about the document
	Metadata map[string]interface{}
}

// SearchResult represents a document found in a search
type SearchResult struct {
	// Document is the found document
	Document Document

	// Score is the similarity score (0-1, higher is more similar)
	Score float32
}

// VectorStore represents a vector database for storing and retrieving embeddings
type VectorStore interface {
	// Name identifies the backing database, e.g. "weaviate" or "pgvector"
	Name() string

	// Store stores documents in the vector store
	Store(ctx context.Context, documents []Document, options ...StoreOption) error

	// Search searches for similar documents
	Search(ctx context.Context, query string, limit int, options ...SearchOption) ([]SearchResult, error)

	// SearchByVector searches for similar documents using a vector
	SearchByVector(ctx context.Context, vector []float32, limit int, options ...SearchOption) ([]SearchResult, error)

	// Delete removes documents from the vector store
	Delete(ctx context.Context, ids []string, options ...DeleteOption) error
}

// StoreOption represents an option for storing documents
type StoreOption func(*StoreOptions)

// SearchOption represents an option for searching documents
type SearchOption func(*SearchOptions)

// DeleteOption represents an option for deleting documents
type DeleteOption func(*DeleteOptions)

// StoreOptions contains options for storing documents
type StoreOptions struct {
	// BatchSize is the number of documents to store in each batch
	BatchSize int

	// Class is the class/collection name to store documents in
	Class string
}

// SearchOptions contains options for searching documents
type SearchOptions struct {
	// MinScore is the minimum similarity score (0-1)
	MinScore float32

	// Filters are metadata filters to apply to the search
	Filters map[string]interface{}

	// Class is the class/collection name to search in
	Class string
}

// DeleteOptions contains options for deleting documents
type DeleteOptions struct {
	// Class is the class/collection name to delete from
	Class string
}

// WithBatchSize sets the batch size for storing documents
func WithBatchSize(size int) StoreOption {
	return func(o *StoreOptions) {
		o.BatchSize = size
	}
}

// WithClass sets the class/collection name
func WithClass(class string) StoreOption {
	return func(o *StoreOptions) {
		o.Class = class
	}
}

// WithSearchClass sets the class/collection name to search in
func WithSearchClass(class string) SearchOption {
	return func(o *SearchOptions) {
		o.Class = class
	}
}

// WithMinScore sets the minimum similarity score
func WithMinScore(score float32) SearchOption {
	return func(o *SearchOptions) {
		o.MinScore = score
	}
}

// WithFilters sets metadata filters
func WithFilters(filters map[string]interface{}) SearchOption {
	return func(o *SearchOptions) {
		o.Filters = filters
	}
}

// WithDeleteClass sets the class/collection name to delete from
func WithDeleteClass(class string) DeleteOption {
	return func(o *DeleteOptions) {
		o.Class = class
	}
}

// ApplyStoreOptions folds options into a fresh StoreOptions
func ApplyStoreOptions(options ...StoreOption) StoreOptions {
	var o StoreOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}

// ApplySearchOptions folds options into a fresh SearchOptions
func ApplySearchOptions(options ...SearchOption) SearchOptions {
	var o SearchOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}

// ApplyDeleteOptions folds options into a fresh DeleteOptions
func ApplyDeleteOptions(options ...DeleteOption) DeleteOptions {
	var o DeleteOptions
	for _, opt := range options {
		opt(&o)
	}
	return o
}

// Vector store operations recorded on spans
const (
	VectorStoreOpStore          = "store"
	VectorStoreOpSearch         = "search"
	VectorStoreOpSearchByVector = "search_by_vector"
	VectorStoreOpDelete         = "delete"
)

// VectorStoreRequest is one VectorStore call as seen by the tracing layer
type VectorStoreRequest struct {
	System     string
	Operation  string
	Collection string
	Query      string
	Vector     []float32
	Limit      int
	MinScore   float32
	Filters    map[string]interface{}
	BatchSize  int
	IDs        []string
	Documents  []Document
}
