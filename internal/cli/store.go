package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var (
	storeCategory string
	storeSession  string
)

var storeCmd = &cobra.Command{
	Use:   "store <key> <content>",
	Short: "Store a memory entry under a key",
	Long: `Store a memory entry. Re-storing an existing key overwrites its
content while keeping the entry's id.`,
	Args: cobra.ExactArgs(2),
	RunE: runStore,
}

func init() {
	storeCmd.Flags().StringVar(&storeCategory, "category", "core", "entry category (core, daily, conversation or a custom name)")
	storeCmd.Flags().StringVar(&storeSession, "session", "", "session tag scoping the entry")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		category := memory.ParseCategory(storeCategory)
		if err := engine.Store(cmd.Context(), args[0], args[1], category, storeSession); err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]interface{}{"stored": true, "key": args[0]})
		}
		fmt.Printf("Stored %q\n", args[0])
		return nil
	})
}
