package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var (
	listCategory string
	listSession  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored entries, most recently updated first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listCategory, "category", "", "only entries in this category")
	listCmd.Flags().StringVar(&listSession, "session", "", "only entries with this session tag")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		entries, err := engine.List(cmd.Context(), memory.ListOptions{
			Category:  memory.Category(listCategory),
			SessionID: listSession,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No entries")
			return nil
		}
		for _, entry := range entries {
			printEntry(entry)
		}
		return nil
	})
}
