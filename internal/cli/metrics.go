package cli

import (
	"fmt"
	"os"

	"meal-planner/internal/metrics"

	"github.com/spf13/cobra"
)

var (
	cleanupDays int
	reportDays  int
	reportSend  bool
)

var metricsCleanupCmd = &cobra.Command{
	Use:   "metrics-cleanup",
	Short: "Remove old sync metric records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cleanupDays < 1 {
			return fmt.Errorf("--days must be at least 1")
		}
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		affected, err := rt.metrics.Cleanup(cmd.Context(), cleanupDays)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		_, _ = successColor.Printf("✓ removed %d old metric record(s)\n", affected)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recent sync runs and process health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		days, err := rt.metrics.GetDailySyncs(ctx, reportDays)
		if err != nil {
			return err
		}
		health := metrics.GetSysHealth(rt.cfg.DataDir)

		if reportSend {
			if rt.notifier == nil {
				return fmt.Errorf("--send requires TELEGRAM_BOT_TOKEN")
			}
			if err := rt.notifier.SendReport(ctx, days, health); err != nil {
				return err
			}
		}

		if jsonOutput {
			return outputJSON(map[string]any{"syncs": days, "system": health})
		}
		printDailySyncs(os.Stdout, days)
		printSection(os.Stdout, "System")
		printLabelValue(os.Stdout, "Memory", fmt.Sprintf("%d MB alloc, %d MB sys", health.AllocMB, health.SysMB))
		printLabelValue(os.Stdout, "Goroutines", fmt.Sprintf("%d", health.Goroutines))
		printLabelValue(os.Stdout, "Data dir", health.DataDiskSize)
		return nil
	},
}

func init() {
	metricsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Keep records for the last N days")
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Number of days to summarize")
	reportCmd.Flags().BoolVar(&reportSend, "send", false, "Also send the report to the Telegram alert chat")
}
