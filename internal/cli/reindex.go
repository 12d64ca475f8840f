package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the keyword index and backfill missing embeddings",
	Long: `Rebuild the full-text index from the entry store, then compute
embeddings for every entry missing one. Safe to run repeatedly; a second
immediate run re-embeds nothing.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		reembedded, err := engine.Reindex(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]interface{}{"reembedded": reembedded})
		}
		fmt.Printf("Reindexed; %d entries re-embedded\n", reembedded)
		return nil
	})
}
