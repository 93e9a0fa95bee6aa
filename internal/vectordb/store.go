package vectordb

import "context"

// VectorStore stores policy clause chunks and searches them by embedding similarity.
type VectorStore interface {
	// AddDocuments adds or replaces documents in the store.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search performs a semantic search using the query text.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error)

	// DeleteBySource removes every chunk indexed from the given source document.
	DeleteBySource(ctx context.Context, source string) error

	// Persist makes all added documents durable. For the embedded store
	// dir is where the snapshot is written.
	Persist(ctx context.Context, dir string) error

	// Load restores or attaches the store's data.
	Load(ctx context.Context, dir string) error

	// Count returns the total number of chunks in the store.
	Count(ctx context.Context) (int, error)

	// Close releases any connection held by the store.
	Close() error
}
