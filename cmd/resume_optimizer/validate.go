package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TedTes/genres-sub000/internal/llm"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and print the resolved settings",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	llmCfg, err := cfg.LLMClientConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration OK")
	fmt.Fprintf(out, "  LLM:        %s (lite=%s, standard=%s, advanced=%s)\n", llmCfg.Provider,
		llmCfg.GetModel(llm.TierLite), llmCfg.GetModel(llm.TierStandard), llmCfg.GetModel(llm.TierAdvanced))
	fmt.Fprintf(out, "  API key:    %s\n", presence(cfg.LLM.APIKey))
	fmt.Fprintf(out, "  Embedding:  %s\n", cfg.Embedding.Provider)
	fmt.Fprintf(out, "  Cache:      %s (result TTL %s)\n", cfg.Cache.Backend, cfg.Cache.ResultTTL)
	fmt.Fprintf(out, "  Storage:    %s\n", cfg.Storage.Backend)
	fmt.Fprintf(out, "  Database:   %s\n", presence(cfg.Database.URL))
	fmt.Fprintf(out, "  Weights:    %.2f/%.2f/%.2f/%.2f/%.2f\n", cfg.Scoring.KeywordCoverage, cfg.Scoring.SemanticSimilarity,
		cfg.Scoring.ExperienceRelevance, cfg.Scoring.SkillsAlignment, cfg.Scoring.Completeness)
	return nil
}

func presence(s string) string {
	if s == "" {
		return "not set"
	}
	return "set"
}
