package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/shopping"

	"github.com/fatih/color"
)

// fatih/color disables itself when stdout is not a TTY.
var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	_, _ = headerColor.Fprintf(w, "▸ %s\n", title)
}

func printLabelValue(w io.Writer, label, value string) {
	_, _ = labelColor.Fprintf(w, "  %s: ", label)
	fmt.Fprintln(w, value)
}

func printPlan(w io.Writer, plan planner.MealPlan) {
	printSection(w, "Meal plan")
	if plan.ID != "" {
		printLabelValue(w, "ID", plan.ID)
	}
	printLabelValue(w, "Snapshot", fmt.Sprintf("v%d (captured %s)", plan.SnapshotVersion, plan.SnapshotCapturedAt.Format(time.RFC3339)))
	if plan.Stale {
		_, _ = warningColor.Fprintf(w, "  ⚠ inventory is %s old, plan may be out of date\n", plan.StaleAge.Round(time.Second))
	}
	for _, warning := range plan.Warnings {
		_, _ = warningColor.Fprintf(w, "  ⚠ %s\n", warning)
	}

	printSection(w, "Selected recipes")
	if len(plan.SelectedRecipes) == 0 {
		_, _ = dimColor.Fprintln(w, "  none")
	}
	for i, r := range plan.SelectedRecipes {
		_, _ = successColor.Fprintf(w, "  %d. %s", i+1, r.Name)
		if r.Duration != "" {
			_, _ = dimColor.Fprintf(w, " (%s)", r.Duration)
		}
		fmt.Fprintln(w)
	}

	if len(plan.UnmetIngredients) > 0 {
		printSection(w, "Missing ingredients")
		for _, id := range plan.UnmetIngredients {
			_, _ = errorColor.Fprintf(w, "  ✗ %s\n", id)
		}
	}

	if len(plan.Rejections) > 0 {
		printSection(w, "Skipped recipes")
		for _, rej := range plan.Rejections {
			parts := make([]string, 0, len(rej.Shortfalls))
			for _, sf := range rej.Shortfalls {
				parts = append(parts, fmt.Sprintf("%s %s (%g/%g)", sf.ItemID, sf.Reason, sf.Available, sf.Required))
			}
			_, _ = dimColor.Fprintf(w, "  %s: %s\n", rej.RecipeName, strings.Join(parts, ", "))
		}
	}
}

func printShoppingList(w io.Writer, list shopping.List) {
	printSection(w, "Shopping list")
	if len(list.Items) == 0 {
		_, _ = dimColor.Fprintln(w, "  nothing to buy")
		return
	}
	for _, it := range list.Items {
		name := it.ItemID
		if it.Name != "" {
			name = it.Name
		}
		fmt.Fprintf(w, "  • %s: %g %s", name, it.Quantity, it.Unit)
		_, _ = dimColor.Fprintf(w, " (%s, for %s)\n", it.Reason, strings.Join(it.Recipes, ", "))
	}
}

func printSnapshot(w io.Writer, snap inventory.Snapshot) {
	printSection(w, fmt.Sprintf("Snapshot v%d", snap.Version))
	printLabelValue(w, "Captured", snap.CapturedAt.Format(time.RFC3339))
	printLabelValue(w, "Items", fmt.Sprintf("%d", len(snap.Items)))
	fmt.Fprintln(w)
	for _, id := range inventory.SortedIDs(snap.Items) {
		item := snap.Items[id]
		line := fmt.Sprintf("  %-20s %-24s %g %s", item.ID, item.Name, item.Quantity, item.Unit)
		if item.Expiry != nil {
			line += " expires " + item.Expiry.Format("2006-01-02")
		}
		if item.ExpiredAt(snap.CapturedAt) {
			_, _ = errorColor.Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}

func printDailySyncs(w io.Writer, days []metrics.DailySyncs) {
	printSection(w, "Sync runs")
	if len(days) == 0 {
		_, _ = dimColor.Fprintln(w, "  no sync runs recorded")
		return
	}
	_, _ = labelColor.Fprintf(w, "  %-10s %6s %9s %9s %6s %8s %8s\n", "Date", "Total", "Committed", "Unchanged", "Failed", "Attempts", "Avg ms")
	for _, d := range days {
		line := fmt.Sprintf("  %-10s %6d %9d %9d %6d %8d %8d", d.Date, d.Total, d.Committed, d.Unchanged, d.Failed, d.TotalAttempts, d.AvgLatencyMS)
		if d.Failed > 0 {
			_, _ = warningColor.Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
}
