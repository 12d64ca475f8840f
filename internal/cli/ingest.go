package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Chunk and store markdown documents from a directory",
	Long: `Walk a directory of markdown files, split each into overlapping
chunks and store them as document entries. Unchanged files are skipped;
entries of removed files are forgotten. Without an argument the configured
ingest directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Ingest.Dir
	if len(args) > 0 {
		root = args[0]
	}
	if root == "" {
		return fmt.Errorf("no ingest directory given and none configured")
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := ingest.New(engine, ingest.Config{
		Root:          root,
		MaxTokens:     cfg.Ingest.MaxTokens,
		OverlapTokens: cfg.Ingest.OverlapTokens,
		Logger:        zerolog.Nop(),
	})
	if err != nil {
		return err
	}

	result, err := pipeline.Sync(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Printf("Indexed %d files (%d chunks), skipped %d, pruned %d\n",
		result.FilesIndexed, result.ChunksStored, result.FilesSkipped, result.FilesPruned)
	return nil
}
