package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the storage engine is reachable",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		healthy := engine.HealthCheck(cmd.Context())

		if jsonOutput {
			if err := printJSON(map[string]interface{}{"healthy": healthy}); err != nil {
				return err
			}
		} else if healthy {
			fmt.Println("healthy")
		} else {
			fmt.Println("unhealthy")
		}

		if !healthy {
			return fmt.Errorf("storage engine health check failed")
		}
		return nil
	})
}
