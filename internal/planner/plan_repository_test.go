package planner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"meal-planner/internal/database"
	"meal-planner/internal/recipe"
)

func TestPlanRepository(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := NewPlanRepository(db.SQL)

	older := MealPlan{
		ID:              "plan-1",
		GeneratedAt:     fixedNow.Add(-time.Hour),
		SnapshotVersion: 2,
		SelectedRecipes: []recipe.Recipe{{ID: "pancakes", Name: "Pancakes"}},
	}
	newer := MealPlan{
		ID:               "plan-2",
		GeneratedAt:      fixedNow,
		SnapshotVersion:  3,
		UnmetIngredients: []string{"flour"},
	}
	newer.MarkStale(90*time.Minute, "inventory service unreachable")

	for _, p := range []MealPlan{older, newer} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.Get(ctx, "plan-2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !got.Stale || got.StaleAge != 90*time.Minute || got.SnapshotVersion != 3 {
			t.Errorf("Unexpected plan %+v", got)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, ErrPlanNotFound) {
			t.Errorf("Expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("ListRecent", func(t *testing.T) {
		plans, err := repo.ListRecent(ctx, 10)
		if err != nil {
			t.Fatalf("ListRecent failed: %v", err)
		}
		if len(plans) != 2 || plans[0].ID != "plan-2" || plans[1].ID != "plan-1" {
			t.Errorf("Expected newest first, got %+v", plans)
		}
	})

	t.Run("RequiresID", func(t *testing.T) {
		if err := repo.Save(ctx, MealPlan{}); err == nil {
			t.Error("Expected an error for a plan without id")
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		if err := repo.Save(ctx, older); err == nil {
			t.Error("Expected an error when saving the same id twice")
		}
	})
}
