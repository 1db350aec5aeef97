package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch inventory and commit a new snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.app.Sync(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(res)
		}
		if res.Changed {
			_, _ = successColor.Printf("✓ committed snapshot v%d (%d items, %d attempt(s))\n", res.Version, res.ItemCount, res.Attempts)
			return nil
		}
		fmt.Fprintf(os.Stdout, "inventory unchanged, latest snapshot is v%d\n", res.Version)
		return nil
	},
}
