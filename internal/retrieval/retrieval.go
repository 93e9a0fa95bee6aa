// Package retrieval runs multi-phrase similarity search over the clause
// index and merges the results.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/vectordb"
)

// Clause is a retrieved passage of a policy document. Content is its
// identity for deduplication; Source and Similarity are provenance only.
type Clause struct {
	Content    string  `json:"content"`
	Source     string  `json:"source,omitempty"`
	Similarity float32 `json:"similarity"`
}

// Searcher is the similarity-search capability.
type Searcher interface {
	Search(ctx context.Context, phrase string, limit int) ([]Clause, error)
}

// SearcherFunc adapts a plain function to Searcher.
type SearcherFunc func(ctx context.Context, phrase string, limit int) ([]Clause, error)

func (f SearcherFunc) Search(ctx context.Context, phrase string, limit int) ([]Clause, error) {
	return f(ctx, phrase, limit)
}

// StoreSearcher searches a vectordb.VectorStore.
type StoreSearcher struct {
	Store  vectordb.VectorStore
	Filter *vectordb.SearchFilter
}

func (s StoreSearcher) Search(ctx context.Context, phrase string, limit int) ([]Clause, error) {
	results, err := s.Store.Search(ctx, phrase, limit, s.Filter)
	if err != nil {
		return nil, err
	}
	clauses := make([]Clause, len(results))
	for i, r := range results {
		clauses[i] = Clause{
			Content:    r.Document.Content,
			Source:     r.Document.Metadata.Source,
			Similarity: r.Similarity,
		}
	}
	return clauses, nil
}

// Options configure a Service.
type Options struct {
	// MaxPhrases is how many leading phrases are searched.
	MaxPhrases int
	// SearchTimeout bounds each per-phrase search.
	SearchTimeout time.Duration
	// CacheSize enables a per-phrase result cache when positive.
	CacheSize int
	// CacheTTL is how long cached results stay valid.
	CacheTTL time.Duration
}

// DefaultOptions returns the standard retrieval settings.
func DefaultOptions() Options {
	return Options{MaxPhrases: 3, SearchTimeout: 10 * time.Second}
}

// Service merges per-phrase similarity search results.
type Service struct {
	searcher Searcher
	opts     Options
	cache    *expirable.LRU[string, []Clause]
	logger   *zap.Logger
}

// NewService returns a Service over searcher.
func NewService(searcher Searcher, opts Options, logger *zap.Logger) *Service {
	if opts.MaxPhrases <= 0 {
		opts.MaxPhrases = DefaultOptions().MaxPhrases
	}
	s := &Service{searcher: searcher, opts: opts, logger: logging.OrNop(logger)}
	if opts.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, []Clause](opts.CacheSize, nil, opts.CacheTTL)
	}
	return s
}

// Retrieve searches the first MaxPhrases phrases concurrently, asking
// each for perPhraseLimit results. Results are taken in phrase order,
// deduplicated by exact content keeping the first occurrence, and
// truncated to totalLimit. A failing phrase contributes nothing; the
// call itself never fails.
func (s *Service) Retrieve(ctx context.Context, phrases []string, perPhraseLimit, totalLimit int) []Clause {
	start := time.Now()
	defer metrics.ObserveStage("retrieval", start)

	if len(phrases) > s.opts.MaxPhrases {
		phrases = phrases[:s.opts.MaxPhrases]
	}
	if len(phrases) == 0 || perPhraseLimit <= 0 || totalLimit <= 0 {
		metrics.ObserveClauses(0)
		return nil
	}

	perPhrase := make([][]Clause, len(phrases))
	g, gctx := errgroup.WithContext(ctx)
	for i, phrase := range phrases {
		g.Go(func() error {
			clauses, err := s.searchOne(gctx, phrase, perPhraseLimit)
			if err != nil {
				s.logger.Warn("phrase search failed",
					zap.String("stage", "retrieval"),
					zap.String("phrase", phrase),
					zap.Error(err))
				metrics.IncFallback("retrieval")
				return nil
			}
			perPhrase[i] = clauses
			return nil
		})
	}
	_ = g.Wait()

	merged := Merge(perPhrase, totalLimit)
	metrics.ObserveClauses(len(merged))
	return merged
}

func (s *Service) searchOne(ctx context.Context, phrase string, limit int) ([]Clause, error) {
	key := fmt.Sprintf("%s|%d", phrase, limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			metrics.IncCache(true)
			return cached, nil
		}
		metrics.IncCache(false)
	}

	if s.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SearchTimeout)
		defer cancel()
	}
	clauses, err := s.searcher.Search(ctx, phrase, limit)
	if err != nil {
		return nil, err
	}
	if len(clauses) > limit {
		clauses = clauses[:limit]
	}
	if s.cache != nil {
		s.cache.Add(key, clauses)
	}
	return clauses, nil
}

// Merge concatenates per-phrase results in order, drops clauses whose
// content was already seen and stops at limit.
func Merge(perPhrase [][]Clause, limit int) []Clause {
	seen := make(map[string]bool)
	var out []Clause
	for _, clauses := range perPhrase {
		for _, c := range clauses {
			if seen[c.Content] {
				continue
			}
			seen[c.Content] = true
			out = append(out, c)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}
