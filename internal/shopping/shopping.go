// Package shopping derives a buy list from the recipes a plan had to skip.
package shopping

import (
	"sort"

	"meal-planner/internal/inventory"
	"meal-planner/internal/planner"
)

// Item is one ingredient to buy.
type Item struct {
	ItemID   string         `json:"item_id"`
	Name     string         `json:"name,omitempty"`
	Unit     string         `json:"unit,omitempty"`
	Quantity float64        `json:"quantity"`
	Reason   planner.Reason `json:"reason"`
	Recipes  []string       `json:"recipes"`
}

// List is the shopping list for one plan.
type List struct {
	PlanID          string `json:"plan_id,omitempty"`
	SnapshotVersion int64  `json:"snapshot_version"`
	Items           []Item `json:"items"`
}

// Build lists, for every ingredient that blocked a recipe, the quantity that
// would let all skipped recipes be cooked from what the plan left over.
// Expired and missing stock counts as zero. stock supplies names and units
// and may be nil. Only blocking ingredients are listed; a skipped recipe can
// still compete with another for stock that was sufficient on its own.
func Build(plan planner.MealPlan, stock map[string]inventory.Item) List {
	needed := make(map[string]*Item)
	for _, rej := range plan.Rejections {
		label := rej.RecipeName
		if label == "" {
			label = rej.RecipeID
		}
		for _, sf := range rej.Shortfalls {
			it, ok := needed[sf.ItemID]
			if !ok {
				it = &Item{ItemID: sf.ItemID, Reason: sf.Reason}
				needed[sf.ItemID] = it
			}
			it.Quantity += sf.Required
			it.Recipes = append(it.Recipes, label)
		}
	}

	list := List{PlanID: plan.ID, SnapshotVersion: plan.SnapshotVersion, Items: []Item{}}
	for id, it := range needed {
		if it.Reason == planner.ReasonInsufficient {
			it.Quantity -= plan.Remaining[id]
		}
		if it.Quantity <= 0 {
			continue
		}
		if s, ok := stock[id]; ok {
			it.Name, it.Unit = s.Name, s.Unit
		}
		list.Items = append(list.Items, *it)
	}
	sort.Slice(list.Items, func(i, j int) bool { return list.Items[i].ItemID < list.Items[j].ItemID })
	return list
}
