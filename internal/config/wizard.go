package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .claimwise.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to claimwise! Let's configure your policy assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"google", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider
	preset := GetPreset(cfg.Provider)
	cfg.Model = preset.Model
	cfg.EmbeddingModel = preset.EmbeddingModel

	// 2. Vector store.
	storePrompt := promptui.Select{
		Label: "Select clause index",
		Items: []string{
			"chromem: embedded, stored under the data directory",
			"milvus: remote Milvus deployment",
		},
	}
	storeIdx, _, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vector store selection: %w", err)
	}
	if storeIdx == 1 {
		cfg.VectorStore.Type = VectorStoreMilvus
		addrPrompt := promptui.Prompt{
			Label:   "Milvus address",
			Default: cfg.VectorStore.Milvus.Address,
		}
		addr, err := addrPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("milvus address: %w", err)
		}
		cfg.VectorStore.Milvus.Address = addr
	}

	// 3. Waiting period.
	waitPrompt := promptui.Prompt{
		Label:   "Waiting period for joint procedures (months)",
		Default: strconv.Itoa(cfg.Rules.WaitingPeriodMonths),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("enter a non-negative whole number")
			}
			return nil
		},
	}
	waitStr, err := waitPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("waiting period: %w", err)
	}
	cfg.Rules.WaitingPeriodMonths, _ = strconv.Atoi(waitStr)

	// 4. Baseline payout.
	payoutPrompt := promptui.Prompt{
		Label:   "Baseline payout for approved claims",
		Default: strconv.FormatFloat(cfg.Rules.BaselinePayout, 'f', -1, 64),
		Validate: func(s string) error {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil || v < 0 {
				return fmt.Errorf("enter a non-negative amount")
			}
			return nil
		},
	}
	payoutStr, err := payoutPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("baseline payout: %w", err)
	}
	cfg.Rules.BaselinePayout, _ = strconv.ParseFloat(payoutStr, 64)

	// 5. Documents to index.
	includePrompt := promptui.Prompt{
		Label:   "Policy document patterns (comma-separated globs)",
		Default: strings.Join(cfg.Ingest.Include, ","),
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	if include := splitAndTrim(includeStr); len(include) > 0 {
		cfg.Ingest.Include = include
	}

	envVar := APIKeyEnvVar(cfg.Provider)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment (or .env) before running claimwise index.\n", envVar)
	}

	if err := cfg.Save(DefaultPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultPath)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
