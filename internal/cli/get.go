package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the entry stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		entry, err := engine.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(entry)
		}
		if entry == nil {
			fmt.Printf("No entry under %q\n", args[0])
			return nil
		}
		printEntry(*entry)
		return nil
	})
}
