package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print an engine status snapshot",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		status, err := engine.Status(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(status)
		}

		fmt.Printf("Entries:       %d\n", status.Entries)
		fmt.Printf("Cache records: %d\n", status.CacheRecords)
		fmt.Printf("Cache hits:    %d\n", status.CacheHits)
		fmt.Printf("Cache misses:  %d\n", status.CacheMisses)
		fmt.Printf("Provider:      %s", status.Provider)
		if status.Dimensions > 0 {
			fmt.Printf(" (%d dimensions)", status.Dimensions)
		}
		fmt.Println()
		if status.Healthy {
			fmt.Println("Health:        ok")
		} else {
			fmt.Println("Health:        FAILING")
		}
		return nil
	})
}
