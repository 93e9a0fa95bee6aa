package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CLAIMWISE_"

// DefaultPath is the config file looked up when no --config flag is given.
const DefaultPath = ".claimwise.yml"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CLAIMWISE_*). A double underscore
// separates nested keys: CLAIMWISE_RETRIEVAL__MAX_PHRASES -> retrieval.max_phrases.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderGoogle: true,
	ProviderOllama: true,
}

var validVectorStores = map[VectorStoreType]bool{
	VectorStoreChromem: true,
	VectorStoreMilvus:  true,
}

var validHistoryBackends = map[HistoryBackend]bool{
	HistorySQLite: true,
	HistoryRedis:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of openai, google, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxRPM < 0 {
		return fmt.Errorf("max_rpm must be non-negative")
	}

	if !validVectorStores[c.VectorStore.Type] {
		return fmt.Errorf("invalid vector_store.type %q: must be chromem or milvus", c.VectorStore.Type)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("vector_store.collection is required")
	}
	if c.VectorStore.Type == VectorStoreMilvus && c.VectorStore.Milvus.Address == "" {
		return fmt.Errorf("vector_store.milvus.address is required for the milvus store")
	}

	r := c.Retrieval
	if r.MaxPhrases < 1 || r.PerPhraseLimit < 1 || r.TotalLimit < 1 {
		return fmt.Errorf("retrieval limits must be at least 1")
	}
	if r.CacheSize < 0 || r.CacheTTL < 0 {
		return fmt.Errorf("retrieval cache settings must be non-negative")
	}

	if len(c.Routing.ClaimTriggers) == 0 {
		return fmt.Errorf("routing.claim_triggers must not be empty")
	}

	if c.Rules.WaitingPeriodMonths < 0 {
		return fmt.Errorf("rules.waiting_period_months must be non-negative")
	}
	if c.Rules.BaselinePayout < 0 {
		return fmt.Errorf("rules.baseline_payout must be non-negative")
	}
	for proc, amt := range c.Rules.ProcedurePayouts {
		if amt < 0 {
			return fmt.Errorf("rules.procedure_payouts[%s] must be non-negative", proc)
		}
	}

	if !validHistoryBackends[c.History.Backend] {
		return fmt.Errorf("invalid history.backend %q: must be sqlite or redis", c.History.Backend)
	}
	if c.History.Backend == HistoryRedis && c.History.RedisAddr == "" {
		return fmt.Errorf("history.redis_addr is required for the redis backend")
	}
	if c.History.MaxMessages < 0 || c.History.TTL < 0 {
		return fmt.Errorf("history.max_messages and history.ttl_seconds must be non-negative")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
