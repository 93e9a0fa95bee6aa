package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/ziadkadry99/claimwise/internal/embeddings"
)

const (
	fieldID          = "id"
	fieldContent     = "content"
	fieldSource      = "source"
	fieldTitle       = "title"
	fieldChunkIndex  = "chunk_index"
	fieldContentHash = "content_hash"
	fieldIndexedAt   = "indexed_at"
	fieldVector      = "vector"

	maxContentLength = 65535
	maxPathLength    = 1024
)

var outputFields = []string{fieldContent, fieldSource, fieldTitle, fieldChunkIndex, fieldContentHash, fieldIndexedAt}

// milvusClient is the subset of client.Client the store uses.
type milvusClient interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Delete(ctx context.Context, collName string, partitionName string, expr string) error
	GetCollectionStatistics(ctx context.Context, collName string) (map[string]string, error)
	Close() error
}

// MilvusConfig configures a MilvusStore.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
}

// MilvusStore implements VectorStore on a Milvus collection using cosine
// similarity over an AUTOINDEX.
type MilvusStore struct {
	client     milvusClient
	collection string
	embedder   embeddings.Embedder
}

// NewMilvusStore connects to Milvus and makes sure the collection exists.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig, embedder embeddings.Embedder) (*MilvusStore, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus at %s: %w", cfg.Address, err)
	}
	s := &MilvusStore{client: c, collection: cfg.Collection, embedder: embedder}
	if err := s.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if !has {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("insurance policy clause chunks").
			WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(64)).
			WithField(entity.NewField().WithName(fieldContent).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxContentLength)).
			WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxPathLength)).
			WithField(entity.NewField().WithName(fieldTitle).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxPathLength)).
			WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldContentHash).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
			WithField(entity.NewField().WithName(fieldIndexedAt).WithDataType(entity.FieldTypeInt64)).
			WithField(entity.NewField().WithName(fieldVector).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.embedder.Dimensions())))
		if err := s.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("create collection %s: %w", s.collection, err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, fieldVector, idx, false); err != nil {
			return fmt.Errorf("create index on %s: %w", s.collection, err)
		}
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("load collection %s: %w", s.collection, err)
	}
	return nil
}

func (s *MilvusStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d chunks: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(docs))
	}

	n := len(docs)
	ids := make([]string, n)
	contents := make([]string, n)
	sources := make([]string, n)
	titles := make([]string, n)
	chunks := make([]int64, n)
	hashes := make([]string, n)
	indexedAt := make([]int64, n)
	for i, d := range docs {
		ids[i] = d.ID
		contents[i] = truncate(d.Content, maxContentLength)
		sources[i] = truncate(d.Metadata.Source, maxPathLength)
		titles[i] = truncate(d.Metadata.Title, maxPathLength)
		chunks[i] = int64(d.Metadata.ChunkIndex)
		hashes[i] = d.Metadata.ContentHash
		indexedAt[i] = d.Metadata.IndexedAt.Unix()
	}

	_, err = s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldContent, contents),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnVarChar(fieldTitle, titles),
		entity.NewColumnInt64(fieldChunkIndex, chunks),
		entity.NewColumnVarChar(fieldContentHash, hashes),
		entity.NewColumnInt64(fieldIndexedAt, indexedAt),
		entity.NewColumnFloatVector(fieldVector, s.embedder.Dimensions(), vectors),
	)
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", s.collection, err)
	}
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	var expr string
	if filter != nil && filter.Source != nil {
		expr = fmt.Sprintf("%s == %s", fieldSource, quote(*filter.Source))
	}

	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("build search params: %w", err)
	}
	res, err := s.client.Search(ctx, s.collection, nil, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vectors[0])}, fieldVector, entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var out []SearchResult
	for _, r := range res {
		if r.Err != nil {
			return nil, fmt.Errorf("milvus search result: %w", r.Err)
		}
		for i := 0; i < r.ResultCount; i++ {
			doc, err := documentAt(r, i)
			if err != nil {
				return nil, err
			}
			out = append(out, SearchResult{Document: doc, Similarity: r.Scores[i]})
		}
	}
	return filter.apply(out), nil
}

func documentAt(r client.SearchResult, i int) (Document, error) {
	var doc Document
	var err error
	if doc.ID, err = r.IDs.GetAsString(i); err != nil {
		return doc, fmt.Errorf("read id: %w", err)
	}
	str := func(name string) string {
		if col := r.Fields.GetColumn(name); col != nil {
			v, _ := col.GetAsString(i)
			return v
		}
		return ""
	}
	num := func(name string) int64 {
		if col := r.Fields.GetColumn(name); col != nil {
			v, _ := col.GetAsInt64(i)
			return v
		}
		return 0
	}
	doc.Content = str(fieldContent)
	doc.Metadata = DocumentMetadata{
		Source:      str(fieldSource),
		Title:       str(fieldTitle),
		ChunkIndex:  int(num(fieldChunkIndex)),
		ContentHash: str(fieldContentHash),
	}
	if ts := num(fieldIndexedAt); ts > 0 {
		doc.Metadata.IndexedAt = time.Unix(ts, 0).UTC()
	}
	return doc, nil
}

func (s *MilvusStore) DeleteBySource(ctx context.Context, source string) error {
	expr := fmt.Sprintf("%s == %s", fieldSource, quote(source))
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("delete %s from %s: %w", source, s.collection, err)
	}
	return nil
}

// Persist flushes pending inserts; Milvus owns durability so dir is unused.
func (s *MilvusStore) Persist(ctx context.Context, _ string) error {
	return s.client.Flush(ctx, s.collection, false)
}

// Load makes sure the collection is loaded into query nodes.
func (s *MilvusStore) Load(ctx context.Context, _ string) error {
	return s.client.LoadCollection(ctx, s.collection, false)
}

func (s *MilvusStore) Count(ctx context.Context) (int, error) {
	stats, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("collection statistics: %w", err)
	}
	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("parse row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

func (s *MilvusStore) Close() error {
	return s.client.Close()
}

// quote renders s as a Milvus boolean-expression string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
