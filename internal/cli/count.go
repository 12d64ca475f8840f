package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored entries",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		count, err := engine.Count(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]interface{}{"count": count})
		}
		fmt.Println(count)
		return nil
	})
}
