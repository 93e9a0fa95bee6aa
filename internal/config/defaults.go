package config

import "time"

// ModelPreset describes the default models for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

var modelPresets = map[ProviderType]ModelPreset{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderGoogle: {Model: "gemini-1.5-flash", EmbeddingModel: "gemini-embedding-001"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultClaimTriggers route a query to the claim flow when present.
var DefaultClaimTriggers = []string{"claim", "surgery"}

// DefaultJointProcedureTerms identify the joint-replacement category that
// carries a waiting period.
var DefaultJointProcedureTerms = []string{
	"knee",
	"hip",
	"joint replacement",
	"arthroplasty",
	"shoulder replacement",
}

// DefaultOrthopedicTerms identify orthopedic care for the emergency exemption.
var DefaultOrthopedicTerms = []string{
	"knee",
	"hip",
	"joint",
	"fracture",
	"orthopedic",
	"orthopaedic",
	"bone",
	"ligament",
	"spine",
}

// DefaultEmergencyTerms mark a query as an emergency when mentioned.
var DefaultEmergencyTerms = []string{
	"emergency",
	"accident",
	"urgent",
	"trauma",
}

// DefaultExcludes are glob patterns skipped during document indexing.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	".claimwise/**",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderGoogle,
		Model:             "gemini-1.5-flash",
		EmbeddingProvider: ProviderGoogle,
		EmbeddingModel:    "gemini-embedding-001",
		DataDir:           ".claimwise",
		MaxRPM:            0,
		VectorStore: VectorStoreConfig{
			Type:       VectorStoreChromem,
			Collection: "policy_clauses",
			Milvus: MilvusConfig{
				Address: "localhost:19530",
			},
		},
		Retrieval: RetrievalConfig{
			MaxPhrases:     3,
			PerPhraseLimit: 2,
			TotalLimit:     5,
			CacheSize:      256,
			CacheTTL:       300,
		},
		Routing: RoutingConfig{
			ClaimTriggers: DefaultClaimTriggers,
		},
		Rules: RulesConfig{
			WaitingPeriodMonths: 24,
			JointProcedureTerms: DefaultJointProcedureTerms,
			OrthopedicTerms:     DefaultOrthopedicTerms,
			EmergencyTerms:      DefaultEmergencyTerms,
			BaselinePayout:      50000,
			ProcedurePayouts:    map[string]float64{},
			Currency:            "INR",
		},
		Timeouts: TimeoutConfig{
			Extraction: 20,
			Expansion:  20,
			Search:     10,
			Decision:   30,
			Answer:     30,
		},
		History: HistoryConfig{
			Backend:     HistorySQLite,
			RedisAddr:   "localhost:6379",
			RedisKey:    "claimwise",
			MaxMessages: 20,
			TTL:         86400,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Ingest: IngestConfig{
			Include:      []string{"**/*.txt", "**/*.md"},
			Exclude:      DefaultExcludes,
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
	}
}

// GetPreset returns the model preset for the given provider.
// Returns the Google preset if the provider is not known.
func GetPreset(provider ProviderType) ModelPreset {
	if p, ok := modelPresets[provider]; ok {
		return p
	}
	return modelPresets[ProviderGoogle]
}

// Seconds converts a configured number of seconds into a duration,
// substituting def when the value is not positive.
func Seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
