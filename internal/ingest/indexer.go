// Package ingest loads policy documents, splits them into overlapping
// chunks and writes the chunks to the vector store.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/progress"
	"github.com/ziadkadry99/claimwise/internal/vectordb"
)

// Options control discovery and chunking.
type Options struct {
	Include      []string
	Exclude      []string
	ChunkSize    int
	ChunkOverlap int
	MaxFileSize  int64
	// PersistDir is passed to the store's Persist after indexing.
	PersistDir string
}

// Stats summarizes an indexing run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
}

// Indexer writes policy document chunks to a vector store.
type Indexer struct {
	store    vectordb.VectorStore
	splitter *Splitter
	opts     Options
	reporter progress.Reporter
	logger   *zap.Logger
}

// NewIndexer returns an Indexer. A nil reporter disables progress output.
func NewIndexer(store vectordb.VectorStore, opts Options, reporter progress.Reporter, logger *zap.Logger) *Indexer {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &Indexer{
		store:    store,
		splitter: NewSplitter(opts.ChunkSize, opts.ChunkOverlap),
		opts:     opts,
		reporter: reporter,
		logger:   logging.OrNop(logger),
	}
}

// Index discovers documents under paths and replaces their chunks in the
// store. Files that fail are skipped and reported together in the returned
// error; the rest are still indexed and persisted.
func (ix *Indexer) Index(ctx context.Context, paths []string) (Stats, error) {
	var stats Stats
	var result *multierror.Error

	files, err := Discover(paths, ix.opts.Include, ix.opts.Exclude, ix.opts.MaxFileSize)
	if errors.Is(err, ErrNoPaths) {
		return stats, err
	}
	if err != nil {
		result = multierror.Append(result, err)
	}

	ix.reporter.Start(len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			ix.reporter.Finish()
			return stats, err
		}
		ix.reporter.Update(i+1, f.Source)

		n, err := ix.indexFile(ctx, f)
		if err != nil {
			ix.logger.Warn("indexing document failed", zap.String("source", f.Source), zap.Error(err))
			result = multierror.Append(result, fmt.Errorf("%s: %w", f.Source, err))
			stats.Skipped++
			continue
		}
		stats.Files++
		stats.Chunks += n
	}
	ix.reporter.Finish()

	if stats.Files > 0 {
		if err := ix.store.Persist(ctx, ix.opts.PersistDir); err != nil {
			return stats, fmt.Errorf("persisting vector store: %w", err)
		}
	}

	ix.logger.Info("indexing complete",
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
		zap.Int("skipped", stats.Skipped))
	return stats, result.ErrorOrNil()
}

func (ix *Indexer) indexFile(ctx context.Context, f File) (int, error) {
	docs, err := ix.Chunk(f)
	if err != nil {
		return 0, err
	}

	if err := ix.store.DeleteBySource(ctx, f.Source); err != nil {
		return 0, fmt.Errorf("removing stale chunks: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	if err := ix.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("adding chunks: %w", err)
	}
	return len(docs), nil
}

// Chunk reads f and returns its chunks as store documents.
func (ix *Indexer) Chunk(f File) ([]vectordb.Document, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	content := string(raw)
	title := ""
	if f.Markdown() {
		content, title = MarkdownToText(raw)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(f.Source), filepath.Ext(f.Source))
	}

	now := time.Now().UTC()
	chunks := ix.splitter.Split(content)
	docs := make([]vectordb.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, vectordb.Document{
			ID:      chunkID(f.Source, i),
			Content: c,
			Metadata: vectordb.DocumentMetadata{
				Source:      f.Source,
				Title:       title,
				ChunkIndex:  i,
				ContentHash: f.ContentHash,
				IndexedAt:   now,
			},
		})
	}
	return docs, nil
}

// chunkID is stable across runs so re-indexing a file replaces its chunks.
func chunkID(source string, index int) string {
	sum := sha256.Sum256([]byte(source + "#" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:16])
}
