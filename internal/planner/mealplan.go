package planner

import (
	"time"

	"meal-planner/internal/recipe"
)

// Reason explains why an ingredient blocked a recipe.
type Reason string

const (
	ReasonInsufficient Reason = "insufficient"
	ReasonMissing      Reason = "missing"
	ReasonExpired      Reason = "expired"
)

// Shortfall is one ingredient a rejected recipe could not get.
type Shortfall struct {
	ItemID    string  `json:"item_id"`
	Required  float64 `json:"required"`
	Available float64 `json:"available"`
	Reason    Reason  `json:"reason"`
}

// Rejection records a recipe that was skipped and why.
type Rejection struct {
	RecipeID   string      `json:"recipe_id"`
	RecipeName string      `json:"recipe_name"`
	Shortfalls []Shortfall `json:"shortfalls"`
}

// PlanOptions narrows the catalog before selection.
type PlanOptions struct {
	// Tags keeps recipes carrying at least one of the tags. Empty keeps all.
	Tags []string `json:"tags,omitempty"`
	// MaxMeals stops selection after this many recipes. Zero means no limit.
	MaxMeals int `json:"max_meals,omitempty"`
}

// MealPlan is the outcome of one planning pass over a snapshot.
type MealPlan struct {
	ID                 string             `json:"id,omitempty"`
	GeneratedAt        time.Time          `json:"generated_at"`
	SnapshotVersion    int64              `json:"snapshot_version"`
	SnapshotCapturedAt time.Time          `json:"snapshot_captured_at"`
	SelectedRecipes    []recipe.Recipe    `json:"selected_recipes"`
	UnmetIngredients   []string           `json:"unmet_ingredients"`
	Rejections         []Rejection        `json:"rejections"`
	Consumption        map[string]float64 `json:"consumption"`
	Remaining          map[string]float64 `json:"remaining"`
	Options            PlanOptions        `json:"options"`

	Stale           bool          `json:"stale"`
	StaleAge        time.Duration `json:"-"`
	StaleAgeSeconds int64         `json:"stale_age_seconds,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// MarkStale flags the plan as computed from an outdated snapshot.
func (p *MealPlan) MarkStale(age time.Duration, warning string) {
	p.Stale = true
	p.StaleAge = age
	p.StaleAgeSeconds = int64(age / time.Second)
	if warning != "" {
		p.Warnings = append(p.Warnings, warning)
	}
}
