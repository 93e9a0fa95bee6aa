package vectordb

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/claimwise/internal/embeddings"
)

const snapshotFile = "chromem.gob.gz"

// ChromemStore implements VectorStore using the embedded chromem-go database.
type ChromemStore struct {
	name       string
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore holding one collection.
func NewChromemStore(embedder embeddings.Embedder, collection string) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collection, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		name:       collection,
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}
	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if filter != nil && filter.Source != nil {
		where = map[string]string{"source": *filter.Source}
	}

	results, err := s.collection.Query(ctx, query, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: mapToMetadata(r.Metadata),
			},
			Similarity: r.Similarity,
		}
	}
	return filter.apply(out), nil
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, source string) error {
	return s.collection.Delete(ctx, map[string]string{"source": source}, nil)
}

func (s *ChromemStore) Persist(_ context.Context, dir string) error {
	return s.db.ExportToFile(filepath.Join(dir, snapshotFile), true, "")
}

func (s *ChromemStore) Load(_ context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, snapshotFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(s.name, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", s.name)
	}
	s.collection = col
	return nil
}

func (s *ChromemStore) Count(context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemStore) Close() error {
	return nil
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"source":       m.Source,
		"title":        m.Title,
		"chunk_index":  strconv.Itoa(m.ChunkIndex),
		"content_hash": m.ContentHash,
		"indexed_at":   m.IndexedAt.Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	chunk, _ := strconv.Atoi(m["chunk_index"])
	indexedAt, _ := time.Parse(time.RFC3339, m["indexed_at"])
	return DocumentMetadata{
		Source:      m["source"],
		Title:       m["title"],
		ChunkIndex:  chunk,
		ContentHash: m["content_hash"],
		IndexedAt:   indexedAt,
	}
}
