package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var (
	recallLimit   int
	recallSession string
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search stored entries by relevance",
	Long: `Search stored entries with hybrid keyword and vector ranking.
Without an embedding provider the ranking is keyword-only.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecall,
}

func init() {
	recallCmd.Flags().IntVar(&recallLimit, "limit", 10, "maximum number of results")
	recallCmd.Flags().StringVar(&recallSession, "session", "", "restrict results to one session tag")
	rootCmd.AddCommand(recallCmd)
}

func runRecall(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		entries, err := engine.Recall(cmd.Context(), args[0], memory.RecallOptions{
			Limit:     recallLimit,
			SessionID: recallSession,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No matches")
			return nil
		}
		for _, entry := range entries {
			printEntry(entry)
		}
		return nil
	})
}
