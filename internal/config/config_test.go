package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderGoogle {
		t.Errorf("expected default provider %q, got %q", ProviderGoogle, cfg.Provider)
	}
	if cfg.Retrieval.MaxPhrases != 3 || cfg.Retrieval.PerPhraseLimit != 2 || cfg.Retrieval.TotalLimit != 5 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Rules.WaitingPeriodMonths != 24 {
		t.Errorf("expected waiting period 24, got %d", cfg.Rules.WaitingPeriodMonths)
	}
	if cfg.Rules.BaselinePayout != 50000 {
		t.Errorf("expected baseline payout 50000, got %f", cfg.Rules.BaselinePayout)
	}
	if diff := cmp.Diff([]string{"claim", "surgery"}, cfg.Routing.ClaimTriggers); diff != "" {
		t.Errorf("claim triggers mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.claimwise.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.Retrieval.TotalLimit = 8
	original.Rules.ProcedurePayouts = map[string]float64{"knee surgery": 150000}
	original.History.Backend = HistoryRedis

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if diff := cmp.Diff(original, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderGoogle {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("CLAIMWISE_PROVIDER", "openai")
	t.Setenv("CLAIMWISE_RETRIEVAL__TOTAL_LIMIT", "9")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
	if loaded.Retrieval.TotalLimit != 9 {
		t.Errorf("nested env override failed: got %d, want 9", loaded.Retrieval.TotalLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty provider", func(c *Config) { c.Provider = "" }, false},
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }, false},
		{"empty model", func(c *Config) { c.Model = "" }, false},
		{"bad vector store", func(c *Config) { c.VectorStore.Type = "faiss" }, false},
		{"milvus without address", func(c *Config) {
			c.VectorStore.Type = VectorStoreMilvus
			c.VectorStore.Milvus.Address = ""
		}, false},
		{"zero total limit", func(c *Config) { c.Retrieval.TotalLimit = 0 }, false},
		{"no triggers", func(c *Config) { c.Routing.ClaimTriggers = nil }, false},
		{"negative payout", func(c *Config) { c.Rules.BaselinePayout = -1 }, false},
		{"negative procedure payout", func(c *Config) {
			c.Rules.ProcedurePayouts = map[string]float64{"hip": -5}
		}, false},
		{"bad history backend", func(c *Config) { c.History.Backend = "postgres" }, false},
		{"overlap too large", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }, false},
		{"negative rpm", func(c *Config) { c.MaxRPM = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid config, got: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	if p := GetPreset(ProviderOpenAI); p.Model != "gpt-4o-mini" {
		t.Errorf("expected gpt-4o-mini, got %q", p.Model)
	}
	if p := GetPreset("unknown"); p.Model != "gemini-1.5-flash" {
		t.Errorf("expected fallback to gemini, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GOOGLE_API_KEY"},
		{ProviderOllama, ""},
	}
	for _, tt := range tests {
		if got := APIKeyEnvVar(tt.provider); got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSeconds(t *testing.T) {
	if got := Seconds(0, 5*time.Second); got != 5*time.Second {
		t.Errorf("Seconds(0) = %v, want default", got)
	}
	if got := Seconds(3, time.Second); got != 3*time.Second {
		t.Errorf("Seconds(3) = %v, want 3s", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"**/*.md", []string{"**/*.md"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, splitAndTrim(tt.input)); diff != "" {
			t.Errorf("splitAndTrim(%q) mismatch (-want +got):\n%s", tt.input, diff)
		}
	}
}
