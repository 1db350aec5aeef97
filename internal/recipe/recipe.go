// Package recipe holds the recipe catalog the planner selects meals from.
package recipe

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidCatalog is matched by every *CatalogError.
var ErrInvalidCatalog = errors.New("invalid recipe catalog")

// Ingredient is one inventory requirement of a recipe.
type Ingredient struct {
	ItemID   string  `json:"item_id" yaml:"item_id"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
}

// Recipe is a catalog entry. Catalog order is the selection priority.
type Recipe struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string       `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Duration     string       `json:"duration,omitempty" yaml:"duration,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	Ingredients  []Ingredient `json:"ingredients" yaml:"ingredients"`
}

// HasAnyTag reports whether the recipe carries one of tags, ignoring case.
// An empty tag list matches every recipe.
func (r Recipe) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		want = strings.TrimSpace(want)
		for _, have := range r.Tags {
			if strings.EqualFold(want, strings.TrimSpace(have)) {
				return true
			}
		}
	}
	return false
}

// Requirements sums the ingredient lines per item, preserving first-seen order.
func (r Recipe) Requirements() ([]string, map[string]float64) {
	order := make([]string, 0, len(r.Ingredients))
	need := make(map[string]float64, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if _, seen := need[ing.ItemID]; !seen {
			order = append(order, ing.ItemID)
		}
		need[ing.ItemID] += ing.Quantity
	}
	return order, need
}

// CatalogError lists every problem found in a catalog. Cause is set when the
// file could not be decoded at all.
type CatalogError struct {
	Source   string
	Problems []string
	Cause    error
}

func (e *CatalogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid recipe catalog %s: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("invalid recipe catalog %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

func (e *CatalogError) Unwrap() error { return e.Cause }

// Is matches ErrInvalidCatalog.
func (e *CatalogError) Is(target error) bool { return target == ErrInvalidCatalog }

// Validate checks that ids are present and unique and that every ingredient
// requires a positive, finite quantity.
func Validate(recipes []Recipe) []string {
	var problems []string
	seen := make(map[string]bool, len(recipes))
	for i, r := range recipes {
		label := r.ID
		if strings.TrimSpace(r.ID) == "" {
			label = fmt.Sprintf("#%d", i)
			problems = append(problems, fmt.Sprintf("recipe %s: missing id", label))
		} else if seen[r.ID] {
			problems = append(problems, fmt.Sprintf("recipe %s: duplicate id", label))
		}
		seen[r.ID] = true

		for j, ing := range r.Ingredients {
			if strings.TrimSpace(ing.ItemID) == "" {
				problems = append(problems, fmt.Sprintf("recipe %s: ingredient %d has no item_id", label, j))
			}
			if math.IsNaN(ing.Quantity) || math.IsInf(ing.Quantity, 0) || ing.Quantity <= 0 {
				problems = append(problems, fmt.Sprintf("recipe %s: ingredient %q must require a positive quantity, got %g", label, ing.ItemID, ing.Quantity))
			}
		}
	}
	return problems
}
