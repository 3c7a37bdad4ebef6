package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sdklens/internal/advisor"
	"sdklens/internal/attested"
	"sdklens/internal/config"
	"sdklens/internal/headerscan"
	"sdklens/internal/llm"
	"sdklens/internal/pipeline"
	"sdklens/internal/storage"
	"sdklens/internal/validate"
)

var (
	rootCmd = &cobra.Command{
		Use:   "sdklens",
		Short: "Map runtime events onto an attested SDK vocabulary and narrate them",
	}
	cfgPath string
	verbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "sdklens.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	suggestCmd.Flags().BoolVar(&applySuggestions, "apply", false, "Write the candidates into the lexicon snapshot")

	rootCmd.AddCommand(narrateCmd)
	rootCmd.AddCommand(interpretCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(scanHeadersCmd)
}

func newLogger() *zap.Logger {
	if verbose {
		log, _ := zap.NewDevelopment()
		return log
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	log, _ := cfg.Build()
	return log
}

func loadAll() (*config.Config, *pipeline.Snapshots, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	snaps, err := pipeline.LoadSnapshots(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, snaps, nil
}

func newClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	return llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
}

func llmParams(cfg *config.Config) llm.Params {
	return llm.Params{Temperature: *cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens}
}

var narrateCmd = &cobra.Command{
	Use:   "narrate [event text]",
	Short: "Run the full pipeline and print the cited narrative",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		cfg, snaps, err := loadAll()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, err := newClient(ctx, cfg)
		if err != nil {
			return err
		}

		p := pipeline.New(snaps, client, llmParams(cfg), cfg.Narrative.MaxQuotes, log)
		event := joinArgs(args)
		res, err := p.Run(ctx, event)
		if err != nil {
			return err
		}

		fmt.Println(res.Narrative.Text)
		if len(res.Narrative.CitationsUsed) > 0 {
			fmt.Printf("\ncitations: %v\n", res.Narrative.CitationsUsed)
		}
		for _, issue := range res.Narrative.LintIssues {
			fmt.Fprintf(os.Stderr, "lint: %s\n", issue)
		}
		return nil
	},
}

var interpretCmd = &cobra.Command{
	Use:   "interpret [event text]",
	Short: "Interpret an event and print matched tokens with their expansion",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		cfg, snaps, err := loadAll()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, err := newClient(ctx, cfg)
		if err != nil {
			return err
		}

		// Analyze, not Run: interpretation must keep working (and stay
		// cheap) when the completion service is unreachable.
		p := pipeline.New(snaps, client, llmParams(cfg), cfg.Narrative.MaxQuotes, log)
		res, err := p.Analyze(ctx, joinArgs(args))
		if err != nil {
			return err
		}

		out := map[string]any{
			"matched":   res.Interpretation.Matched,
			"unmatched": res.Interpretation.Unmatched,
			"expanded":  res.Expanded,
			"fallback":  res.Interpretation.UsedFallback,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Cross-check all data stores against the attested SDK surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, snaps, err := loadAll()
		if err != nil {
			return err
		}

		index, err := loadAttested(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		report := validate.Run(snaps.Registry, snaps.Graph, snaps.Lexicon, snaps.Passages, index)
		for _, f := range report.Findings {
			fmt.Printf("[%s] %s: %s (%s)\n", f.Severity, f.Rule, f.Identifier, f.Detail)
		}
		if report.HasErrors() {
			return fmt.Errorf("validation failed: %d errors", len(report.Errors()))
		}
		fmt.Printf("ok: %d findings, no errors\n", len(report.Findings))
		return nil
	},
}

var applySuggestions bool

var suggestCmd = &cobra.Command{
	Use:   "suggest [term]",
	Short: "Propose lexicon entries for an unmapped term (human-gated)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer log.Sync()

		cfg, snaps, err := loadAll()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, err := newClient(ctx, cfg)
		if err != nil {
			return err
		}

		adv := advisor.New(client, llmParams(cfg), snaps.Registry, snaps.Lexicon, log)
		candidates, err := adv.Suggest(ctx, args[0])
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("no candidates")
			return nil
		}
		for _, c := range candidates {
			fmt.Printf("%-20s -> %-20s %v\n", c.Term, c.Tag, c.Tokens)
		}

		if !applySuggestions {
			fmt.Println("\n(dry run) re-run with --apply to write these into the lexicon")
			return nil
		}
		if err := advisor.Apply(cfg.Data.Lexicon, candidates); err != nil {
			return err
		}
		fmt.Printf("updated %s (backup written alongside)\n", cfg.Data.Lexicon)
		return nil
	},
}

var scanHeadersCmd = &cobra.Command{
	Use:   "scan-headers [path...]",
	Short: "Parse SDK headers and persist the attested surface",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		records, err := headerscan.Scan(args)
		if err != nil {
			return err
		}

		store, err := storage.NewStore(cfg.Data.DB)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ReplaceSurface(cmd.Context(), records); err != nil {
			return err
		}
		fmt.Printf("attested %d symbols into %s\n", len(records), cfg.Data.DB)
		return nil
	},
}

// loadAttested prefers the scan database when present, falling back to
// the JSON snapshot.
func loadAttested(ctx context.Context, cfg *config.Config) (*attested.Index, error) {
	if _, err := os.Stat(cfg.Data.DB); err == nil {
		store, err := storage.NewStore(cfg.Data.DB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		index, err := store.LoadSurface(ctx)
		if err != nil {
			return nil, err
		}
		if index.Len() > 0 {
			return index, nil
		}
	}
	return attested.Load(cfg.Data.Attested)
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
