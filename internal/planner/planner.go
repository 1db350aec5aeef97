// Package planner selects meals that the current inventory can cover.
package planner

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"meal-planner/internal/inventory"
	"meal-planner/internal/recipe"
)

// Engine runs the greedy selection. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine that stamps plans with the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineWithClock creates an Engine with a fixed time source.
func NewEngineWithClock(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// Plan walks the catalog in order and selects every recipe whose ingredients
// are all still in stock and unexpired as of the snapshot's capture time.
// Selected recipes consume stock; rejected ones add their short ingredients
// to the unmet set and are never revisited, since stock only decreases.
func (e *Engine) Plan(snap inventory.Snapshot, catalog []recipe.Recipe, opts PlanOptions) MealPlan {
	remaining := make(map[string]float64, len(snap.Items))
	for id, item := range snap.Items {
		remaining[id] = item.Quantity
	}

	plan := MealPlan{
		GeneratedAt:        e.now().UTC(),
		SnapshotVersion:    snap.Version,
		SnapshotCapturedAt: snap.CapturedAt,
		SelectedRecipes:    []recipe.Recipe{},
		UnmetIngredients:   []string{},
		Rejections:         []Rejection{},
		Consumption:        map[string]float64{},
		Remaining:          remaining,
		Options:            opts,
	}

	unmet := make(map[string]bool)
	considered := 0
	for _, r := range catalog {
		if !r.HasAnyTag(opts.Tags) {
			continue
		}
		considered++
		if opts.MaxMeals > 0 && len(plan.SelectedRecipes) >= opts.MaxMeals {
			break
		}

		order, need := r.Requirements()
		shortfalls := checkRecipe(snap, remaining, order, need)
		if len(shortfalls) > 0 {
			for _, s := range shortfalls {
				unmet[s.ItemID] = true
			}
			plan.Rejections = append(plan.Rejections, Rejection{RecipeID: r.ID, RecipeName: r.Name, Shortfalls: shortfalls})
			continue
		}

		for _, id := range order {
			remaining[id] -= need[id]
			plan.Consumption[id] += need[id]
		}
		plan.SelectedRecipes = append(plan.SelectedRecipes, cloneRecipe(r))
	}

	for id := range unmet {
		plan.UnmetIngredients = append(plan.UnmetIngredients, id)
	}
	sort.Strings(plan.UnmetIngredients)

	if len(opts.Tags) > 0 && considered == 0 && len(catalog) > 0 {
		plan.Warnings = append(plan.Warnings, fmt.Sprintf("no recipes match tags %s", strings.Join(opts.Tags, ", ")))
	}
	return plan
}

// checkRecipe returns every ingredient that blocks the recipe.
func checkRecipe(snap inventory.Snapshot, remaining map[string]float64, order []string, need map[string]float64) []Shortfall {
	var shortfalls []Shortfall
	for _, id := range order {
		item, ok := snap.Items[id]
		switch {
		case !ok:
			shortfalls = append(shortfalls, Shortfall{ItemID: id, Required: need[id], Reason: ReasonMissing})
		case item.ExpiredAt(snap.CapturedAt):
			shortfalls = append(shortfalls, Shortfall{ItemID: id, Required: need[id], Available: remaining[id], Reason: ReasonExpired})
		case need[id] > remaining[id]:
			shortfalls = append(shortfalls, Shortfall{ItemID: id, Required: need[id], Available: remaining[id], Reason: ReasonInsufficient})
		}
	}
	return shortfalls
}

func cloneRecipe(r recipe.Recipe) recipe.Recipe {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Ingredients = append([]recipe.Ingredient{}, r.Ingredients...)
	return out
}
