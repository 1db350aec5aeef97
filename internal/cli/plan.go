package cli

import (
	"os"

	"meal-planner/internal/app"

	"github.com/spf13/cobra"
)

var (
	planForce    bool
	planTags     []string
	planMaxMeals int
	planNotify   bool
	planShopping bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan meals against the latest inventory snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		plan, err := rt.app.RequestPlan(cmd.Context(), app.PlanRequest{
			ForceRefresh: planForce,
			Tags:         planTags,
			MaxMeals:     planMaxMeals,
		})
		if err != nil {
			return err
		}

		if planNotify {
			if rt.notifier == nil {
				rt.logger.Warn("--notify ignored, TELEGRAM_BOT_TOKEN is not set")
			} else if err := rt.notifier.SendPlan(cmd.Context(), plan); err != nil {
				return err
			}
		}

		if planShopping {
			list := rt.app.ShoppingListFor(cmd.Context(), plan)
			if jsonOutput {
				return outputJSON(map[string]any{"plan": plan, "shopping_list": list})
			}
			printPlan(os.Stdout, plan)
			printShoppingList(os.Stdout, list)
			return nil
		}

		if jsonOutput {
			return outputJSON(plan)
		}
		printPlan(os.Stdout, plan)
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planForce, "force", false, "Sync inventory before planning")
	planCmd.Flags().StringSliceVar(&planTags, "tags", nil, "Only consider recipes with one of these tags")
	planCmd.Flags().IntVar(&planMaxMeals, "max-meals", 0, "Stop after selecting this many recipes (0 means no limit)")
	planCmd.Flags().BoolVar(&planNotify, "notify", false, "Send the plan to the Telegram alert chat")
	planCmd.Flags().BoolVar(&planShopping, "shopping", false, "Also print what to buy to cook the skipped recipes")
}
