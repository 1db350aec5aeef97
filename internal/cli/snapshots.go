package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots [version]",
	Short: "List snapshot versions or show one snapshot",
	Long: `Without arguments, lists the retained snapshot versions.
With a version number, or "latest", prints that snapshot's items.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		if len(args) == 0 {
			versions, err := rt.app.Versions(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(map[string][]int64{"versions": versions})
			}
			printSection(os.Stdout, "Snapshots")
			if len(versions) == 0 {
				_, _ = dimColor.Println("  no snapshots yet, run `meal-planner sync`")
			}
			for _, v := range versions {
				fmt.Printf("  v%d\n", v)
			}
			return nil
		}

		var version int64
		if args[0] != "latest" {
			version, err = strconv.ParseInt(args[0], 10, 64)
			if err != nil || version <= 0 {
				return fmt.Errorf("snapshot version must be a positive integer or \"latest\", got %q", args[0])
			}
		}
		snap, err := rt.app.Snapshot(ctx, version)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(snap)
		}
		printSnapshot(os.Stdout, snap)
		return nil
	},
}
