package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <key>",
	Short: "Permanently delete the entry under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
	return withEngine(func(engine *memory.Engine) error {
		removed, err := engine.Forget(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]interface{}{"removed": removed, "key": args[0]})
		}
		if removed {
			fmt.Printf("Forgot %q\n", args[0])
		} else {
			fmt.Printf("No entry under %q\n", args[0])
		}
		return nil
	})
}
