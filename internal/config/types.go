package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
	ProviderOllama ProviderType = "ollama"
)

// VectorStoreType selects the similarity search backend.
type VectorStoreType string

const (
	VectorStoreChromem VectorStoreType = "chromem"
	VectorStoreMilvus  VectorStoreType = "milvus"
)

// HistoryBackend selects where conversation logs are kept.
type HistoryBackend string

const (
	HistorySQLite HistoryBackend = "sqlite"
	HistoryRedis  HistoryBackend = "redis"
)

// Config is the top-level claimwise configuration, corresponding to .claimwise.yml.
type Config struct {
	Provider          ProviderType      `yaml:"provider" koanf:"provider"`
	Model             string            `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType      `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string            `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string            `yaml:"data_dir" koanf:"data_dir"`
	MaxRPM            int               `yaml:"max_rpm" koanf:"max_rpm"`
	VectorStore       VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Retrieval         RetrievalConfig   `yaml:"retrieval" koanf:"retrieval"`
	Routing           RoutingConfig     `yaml:"routing" koanf:"routing"`
	Rules             RulesConfig       `yaml:"rules" koanf:"rules"`
	Timeouts          TimeoutConfig     `yaml:"timeouts" koanf:"timeouts"`
	History           HistoryConfig     `yaml:"history" koanf:"history"`
	Server            ServerConfig      `yaml:"server" koanf:"server"`
	Log               LogConfig         `yaml:"log" koanf:"log"`
	Ingest            IngestConfig      `yaml:"ingest" koanf:"ingest"`
}

// VectorStoreConfig holds settings for the clause index.
type VectorStoreConfig struct {
	Type       VectorStoreType `yaml:"type" koanf:"type"`
	Collection string          `yaml:"collection" koanf:"collection"`
	Milvus     MilvusConfig    `yaml:"milvus" koanf:"milvus"`
}

// MilvusConfig holds connection settings for a Milvus deployment.
type MilvusConfig struct {
	Address  string `yaml:"address" koanf:"address"`
	Username string `yaml:"username" koanf:"username"`
	Password string `yaml:"password" koanf:"password"`
	Database string `yaml:"database" koanf:"database"`
}

// RetrievalConfig controls multi-phrase clause retrieval.
type RetrievalConfig struct {
	MaxPhrases     int `yaml:"max_phrases" koanf:"max_phrases"`
	PerPhraseLimit int `yaml:"per_phrase_limit" koanf:"per_phrase_limit"`
	TotalLimit     int `yaml:"total_limit" koanf:"total_limit"`
	CacheSize      int `yaml:"cache_size" koanf:"cache_size"`
	CacheTTL       int `yaml:"cache_ttl_seconds" koanf:"cache_ttl_seconds"`
}

// RoutingConfig lists the lowercase substrings that send a query to the claim flow.
type RoutingConfig struct {
	ClaimTriggers []string `yaml:"claim_triggers" koanf:"claim_triggers"`
}

// RulesConfig parameterizes the hard coverage rules.
type RulesConfig struct {
	WaitingPeriodMonths int                `yaml:"waiting_period_months" koanf:"waiting_period_months"`
	JointProcedureTerms []string           `yaml:"joint_procedure_terms" koanf:"joint_procedure_terms"`
	OrthopedicTerms     []string           `yaml:"orthopedic_terms" koanf:"orthopedic_terms"`
	EmergencyTerms      []string           `yaml:"emergency_terms" koanf:"emergency_terms"`
	BaselinePayout      float64            `yaml:"baseline_payout" koanf:"baseline_payout"`
	ProcedurePayouts    map[string]float64 `yaml:"procedure_payouts" koanf:"procedure_payouts"`
	Currency            string             `yaml:"currency" koanf:"currency"`
}

// TimeoutConfig bounds every external call, in seconds.
type TimeoutConfig struct {
	Extraction int `yaml:"extraction" koanf:"extraction"`
	Expansion  int `yaml:"expansion" koanf:"expansion"`
	Search     int `yaml:"search" koanf:"search"`
	Decision   int `yaml:"decision" koanf:"decision"`
	Answer     int `yaml:"answer" koanf:"answer"`
}

// HistoryConfig selects and configures the conversation log store.
type HistoryConfig struct {
	Backend   HistoryBackend `yaml:"backend" koanf:"backend"`
	RedisAddr string         `yaml:"redis_addr" koanf:"redis_addr"`
	RedisDB   int            `yaml:"redis_db" koanf:"redis_db"`
	RedisKey  string         `yaml:"redis_key_prefix" koanf:"redis_key_prefix"`
	// MaxMessages caps the stored messages per user; 0 keeps everything.
	MaxMessages int `yaml:"max_messages" koanf:"max_messages"`
	// TTL expires idle redis conversations, in seconds; 0 disables expiry.
	TTL int `yaml:"ttl_seconds" koanf:"ttl_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int      `yaml:"port" koanf:"port"`
	CORSOrigins []string `yaml:"cors_origins" koanf:"cors_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// IngestConfig controls how policy documents are chunked and indexed.
type IngestConfig struct {
	Include      []string `yaml:"include" koanf:"include"`
	Exclude      []string `yaml:"exclude" koanf:"exclude"`
	ChunkSize    int      `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap" koanf:"chunk_overlap"`
}
