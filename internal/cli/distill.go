package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/distill"
)

var (
	distillSession string
	distillFile    string
)

var distillCmd = &cobra.Command{
	Use:   "distill",
	Short: "Extract durable facts from a conversation transcript",
	Long: `Read a transcript from a file or stdin, extract stable facts worth
remembering and store each as a conversation entry. With a configured API key
the extraction uses a model call; otherwise a line-level heuristic applies.`,
	Args: cobra.NoArgs,
	RunE: runDistill,
}

func init() {
	distillCmd.Flags().StringVar(&distillSession, "session", "", "session tag for the stored facts")
	distillCmd.Flags().StringVar(&distillFile, "file", "", "transcript file (default: stdin)")
	rootCmd.AddCommand(distillCmd)
}

func runDistill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var transcript []byte
	if distillFile != "" {
		transcript, err = os.ReadFile(distillFile)
	} else {
		transcript, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	distiller := distill.New(engine, distill.Config{
		APIKey:   cfg.Distill.APIKey,
		Model:    cfg.Distill.Model,
		MaxFacts: cfg.Distill.MaxEntries,
		Logger:   zerolog.Nop(),
	})

	keys, err := distiller.Distill(cmd.Context(), string(transcript), distillSession)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]interface{}{"stored": len(keys), "keys": keys})
	}
	fmt.Printf("Stored %d facts\n", len(keys))
	for _, key := range keys {
		fmt.Printf("  %s\n", key)
	}
	return nil
}
