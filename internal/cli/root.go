// Package cli wires the memory engine's operations onto a cobra command
// tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/config"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

const version = "0.1.0"

var (
	cfgFile    string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zeroclawmem",
	Short: "zeroclawmem - persistent memory engine for autonomous agents",
	Long: `zeroclawmem stores small text facts under keys and answers relevance
queries by fusing full-text and vector search, backed by a deduplicating
embedding cache.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zeroclawmem/config.json)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of human-readable output")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	return config.NewLoader(cfgFile).Load()
}

// openEngine builds an engine for one-shot commands. The CLI keeps the
// engine's own logging quiet so command output stays parseable.
func openEngine(cfg *config.Config) (*memory.Engine, error) {
	provider, err := memory.NewProvider(cfg.Embedding.Provider, memory.ProviderOptions{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}

	return memory.NewEngine(memory.Config{
		DBPath:         cfg.DBPath,
		Logger:         zerolog.Nop(),
		Provider:       provider,
		VectorWeight:   cfg.Search.VectorWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		CacheCapacity:  cfg.Embedding.CacheCapacity,
		HotCacheSize:   cfg.Embedding.HotCacheSize,
		BatchSize:      cfg.Embedding.BatchSize,
		MaxListResults: cfg.Search.MaxList,
	})
}

func withEngine(fn func(*memory.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(engine)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printEntry(entry memory.Entry) {
	fmt.Printf("%s  [%s]", entry.Key, entry.Category)
	if entry.SessionID != "" {
		fmt.Printf("  (session %s)", entry.SessionID)
	}
	if entry.Score > 0 {
		fmt.Printf("  score=%.3f", entry.Score)
	}
	fmt.Printf("\n  %s\n", entry.Content)
}
