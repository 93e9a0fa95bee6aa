package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/audit"
	"github.com/ziadkadry99/claimwise/internal/config"
	"github.com/ziadkadry99/claimwise/internal/db"
	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/embeddings"
	"github.com/ziadkadry99/claimwise/internal/history"
	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
	"github.com/ziadkadry99/claimwise/internal/vectordb"
)

// tokenEncoding is used to budget the answer prompt.
const tokenEncoding = "cl100k_base"

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `claimwise init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the command logger; --verbose forces debug level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	return logging.New(level, cfg.Log.Format)
}

// openVectorStore creates the configured clause index and loads any
// persisted data. An empty embedded store is not an error.
func openVectorStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (vectordb.VectorStore, error) {
	embedder, err := embeddings.New(string(cfg.EmbeddingProvider), cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	switch cfg.VectorStore.Type {
	case config.VectorStoreMilvus:
		m := cfg.VectorStore.Milvus
		store, err := vectordb.NewMilvusStore(ctx, vectordb.MilvusConfig{
			Address:    m.Address,
			Username:   m.Username,
			Password:   m.Password,
			Database:   m.Database,
			Collection: cfg.VectorStore.Collection,
		}, embedder)
		if err != nil {
			return nil, fmt.Errorf("connecting to milvus: %w", err)
		}
		if err := store.Load(ctx, ""); err != nil {
			store.Close()
			return nil, fmt.Errorf("loading milvus collection: %w", err)
		}
		return store, nil

	default:
		store, err := vectordb.NewChromemStore(embedder, cfg.VectorStore.Collection)
		if err != nil {
			return nil, fmt.Errorf("creating vector store: %w", err)
		}
		dir := vectorDir(cfg)
		if err := store.Load(ctx, dir); err != nil {
			logger.Warn("could not load vector store; searches will be empty until `claimwise index` runs",
				zap.String("dir", dir), zap.Error(err))
		}
		return store, nil
	}
}

func vectorDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "vectordb")
}

func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "claimwise.db")
}

// app holds everything a query command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   vectordb.VectorStore
	db      *db.DB
	history history.Store
	audit   *audit.Store
	orch    *pipeline.Orchestrator
}

// newApp wires the full pipeline from the config file.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model, llm.Options{
		MaxRPM:        cfg.MaxRPM,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	gen := llm.NewGenerator(provider, cfg.Model)

	if a.store, err = openVectorStore(ctx, cfg, logger); err != nil {
		return nil, err
	}

	if a.db, err = db.Open(databasePath(cfg)); err != nil {
		a.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.audit = audit.NewStore(a.db)
	if a.history, err = history.New(ctx, cfg.History, a.db); err != nil {
		a.Close()
		return nil, fmt.Errorf("opening conversation history: %w", err)
	}

	t := cfg.Timeouts
	rules := decision.RulesFromConfig(cfg.Rules)
	a.orch = pipeline.New(pipeline.Deps{
		Extractor: query.NewExtractor(llm.WithTimeout(gen, config.Seconds(t.Extraction, 20*time.Second)), rules.EmergencyTerms, logger),
		Expander:  query.NewExpander(llm.WithTimeout(gen, config.Seconds(t.Expansion, 20*time.Second)), logger),
		Retriever: retrieval.NewService(retrieval.StoreSearcher{Store: a.store}, retrieval.Options{
			MaxPhrases:    cfg.Retrieval.MaxPhrases,
			SearchTimeout: config.Seconds(t.Search, 10*time.Second),
			CacheSize:     cfg.Retrieval.CacheSize,
			CacheTTL:      config.Seconds(cfg.Retrieval.CacheTTL, 5*time.Minute),
		}, logger),
		Decider:  decision.NewEngine(llm.WithTimeout(gen, config.Seconds(t.Decision, 30*time.Second)), rules, logger),
		Answerer: pipeline.NewAnswerer(llm.WithTimeout(gen, config.Seconds(t.Answer, 30*time.Second)), llm.NewTokenCounter(tokenEncoding), 0, logger),
		History:  a.history,
		Audit:    a.audit,
		Logger:   logger,
	}, pipeline.Options{
		ClaimTriggers:   cfg.Routing.ClaimTriggers,
		PerPhraseLimit:  cfg.Retrieval.PerPhraseLimit,
		TotalLimit:      cfg.Retrieval.TotalLimit,
		ContextMessages: pipeline.DefaultOptions().ContextMessages,
		Currency:        cfg.Rules.Currency,
	})

	return a, nil
}

// Close releases the stores in reverse order of opening.
func (a *app) Close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("closing history", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	syncLogger(a.logger)
}

// parseOverrides builds patient overrides from flag values that were set.
func parseOverrides(age, duration int, gender, procedure, location string, emergency bool, changed func(string) bool) (*query.Overrides, error) {
	var o query.Overrides
	set := false
	if changed("age") {
		o.Age, set = &age, true
	}
	if changed("duration") {
		o.PolicyDurationMonths, set = &duration, true
	}
	if changed("gender") {
		g, ok := query.ParseGender(gender)
		if !ok {
			return nil, fmt.Errorf("unknown gender %q (use M or F)", gender)
		}
		o.Gender, set = &g, true
	}
	if changed("procedure") {
		o.Procedure, set = &procedure, true
	}
	if changed("location") {
		o.Location, set = &location, true
	}
	if changed("emergency") {
		o.Emergency, set = &emergency, true
	}
	if !set {
		return nil, nil
	}
	return &o, nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
