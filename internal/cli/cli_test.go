package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shopping"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		debug   bool
	}{
		{"JSONInfo", "info", "json", false, false},
		{"TextDebug", "DEBUG", "text", false, true},
		{"DefaultFormat", "warn", "", false, false},
		{"BadLevel", "loud", "json", true, false},
		{"BadFormat", "info", "xml", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(&buf, tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newLogger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			logger.Debug("debug line")
			if got := buf.Len() > 0; got != tt.debug {
				t.Errorf("Debug output written = %v, want %v", got, tt.debug)
			}
		})
	}

	t.Run("JSONShape", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _ := newLogger(&buf, "info", "json")
		logger.Info("hello", "component", "cli")
		if !strings.Contains(buf.String(), `"component":"cli"`) {
			t.Errorf("Expected JSON attributes, got %s", buf.String())
		}
	})
}

func TestPrintPlan(t *testing.T) {
	plan := planner.MealPlan{
		ID:               "p1",
		SnapshotVersion:  3,
		SelectedRecipes:  []recipe.Recipe{{ID: "omelette", Name: "Omelette", Duration: "10 min"}},
		UnmetIngredients: []string{"flour"},
		Rejections: []planner.Rejection{{
			RecipeID:   "pancakes",
			RecipeName: "Pancakes",
			Shortfalls: []planner.Shortfall{{ItemID: "flour", Required: 200, Available: 0, Reason: planner.ReasonMissing}},
		}},
		Stale:    true,
		StaleAge: 3 * time.Hour,
	}

	var buf bytes.Buffer
	printPlan(&buf, plan)
	out := buf.String()
	for _, want := range []string{"v3", "3h0m0s old", "1. Omelette", "(10 min)", "✗ flour", "Pancakes: flour missing (0/200)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, out)
		}
	}
}

func TestPrintShoppingList(t *testing.T) {
	var buf bytes.Buffer
	printShoppingList(&buf, shopping.List{Items: []shopping.Item{
		{ItemID: "flour", Name: "Flour", Unit: "g", Quantity: 100, Reason: planner.ReasonInsufficient, Recipes: []string{"Bread"}},
	}})
	if !strings.Contains(buf.String(), "Flour: 100 g") || !strings.Contains(buf.String(), "for Bread") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}

	buf.Reset()
	printShoppingList(&buf, shopping.List{})
	if !strings.Contains(buf.String(), "nothing to buy") {
		t.Errorf("Expected empty state, got %s", buf.String())
	}
}

func TestPrintSnapshot(t *testing.T) {
	captured := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	expired := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	snap := inventory.Snapshot{
		Version:    2,
		CapturedAt: captured,
		Items: map[string]inventory.Item{
			"milk": {ID: "milk", Name: "Milk", Quantity: 1, Unit: "l", Expiry: &expired},
			"eggs": {ID: "eggs", Name: "Eggs", Quantity: 6, Unit: "pcs"},
		},
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap)
	out := buf.String()
	if strings.Index(out, "eggs") > strings.Index(out, "milk") {
		t.Errorf("Expected items sorted by id:\n%s", out)
	}
	if !strings.Contains(out, "expires 2024-05-01") {
		t.Errorf("Expected expiry date in output:\n%s", out)
	}
}

func TestPrintDailySyncs(t *testing.T) {
	var buf bytes.Buffer
	printDailySyncs(&buf, nil)
	if !strings.Contains(buf.String(), "no sync runs recorded") {
		t.Errorf("Expected empty state, got %s", buf.String())
	}

	buf.Reset()
	printDailySyncs(&buf, []metrics.DailySyncs{{Date: "2024-05-02", Total: 3, Committed: 2, Failed: 1, TotalAttempts: 6, AvgLatencyMS: 120}})
	if !strings.Contains(buf.String(), "2024-05-02") {
		t.Errorf("Expected row for 2024-05-02, got %s", buf.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "sync": false, "plan": false, "snapshots": false, "metrics-cleanup": false, "report": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Expected command %q to be registered", name)
		}
	}
}

func TestNewRuntimeRejectsBadConfig(t *testing.T) {
	t.Setenv("INVENTORY_SERVICE_URL", "not a url")
	t.Setenv("DATA_DIR", t.TempDir())
	if _, err := newRuntime(t.Context()); err == nil {
		t.Fatal("Expected configuration error")
	}
}

func TestNewRuntimeWithoutCatalog(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("INVENTORY_SERVICE_URL", "http://localhost:5005")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")

	rt, err := newRuntime(t.Context())
	if err != nil {
		t.Fatalf("newRuntime failed: %v", err)
	}
	defer rt.Close()

	if n := len(rt.app.Catalog()); n != 0 {
		t.Errorf("Expected empty catalog, got %d recipes", n)
	}
	if rt.notifier != nil {
		t.Error("Expected no notifier without TELEGRAM_BOT_TOKEN")
	}
}
