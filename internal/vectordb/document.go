package vectordb

import "time"

// Document is one chunk of a policy document.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata records where a chunk came from.
type DocumentMetadata struct {
	Source      string // path of the policy document
	Title       string
	ChunkIndex  int
	ContentHash string
	IndexedAt   time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows search results.
type SearchFilter struct {
	Source        *string
	MinSimilarity float32
}

// apply drops results below the similarity floor, preserving order.
func (f *SearchFilter) apply(results []SearchResult) []SearchResult {
	if f == nil || f.MinSimilarity <= 0 {
		return results
	}
	kept := results[:0]
	for _, r := range results {
		if r.Similarity >= f.MinSimilarity {
			kept = append(kept, r)
		}
	}
	return kept
}
