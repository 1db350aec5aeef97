package inventory

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		items, err := Validate([]Item{
			{ID: " flour ", Name: "Flour", Quantity: 500, Unit: "g"},
			{ID: "eggs", Name: "Eggs", Quantity: 0, Unit: "pcs"},
		})
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("Expected 2 items, got %d", len(items))
		}
		if _, ok := items["flour"]; !ok {
			t.Error("Expected id to be trimmed to 'flour'")
		}
	})

	t.Run("ReportsEveryProblem", func(t *testing.T) {
		_, err := Validate([]Item{
			{ID: "flour", Quantity: -1},
			{ID: "", Quantity: 1},
			{ID: "eggs", Quantity: 2},
			{ID: "eggs", Quantity: 3},
			{ID: "milk", Quantity: math.NaN()},
		})
		if !errors.Is(err, ErrInvalidData) {
			t.Fatalf("Expected ErrInvalidData, got %v", err)
		}
		var invalid *InvalidDataError
		if !errors.As(err, &invalid) {
			t.Fatalf("Expected *InvalidDataError, got %T", err)
		}
		if len(invalid.Problems) != 4 {
			t.Errorf("Expected 4 problems, got %d: %v", len(invalid.Problems), invalid.Problems)
		}
		if !strings.Contains(err.Error(), `"eggs": duplicate id`) {
			t.Errorf("Expected duplicate id in message, got %q", err.Error())
		}
	})
}

func TestSameItems(t *testing.T) {
	exp := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	expCopy := exp
	a := map[string]Item{"eggs": {ID: "eggs", Quantity: 6, Expiry: &exp}}
	b := map[string]Item{"eggs": {ID: "eggs", Quantity: 6, Expiry: &expCopy}}

	if !SameItems(a, b) {
		t.Error("Expected equal item sets")
	}

	b["eggs"] = Item{ID: "eggs", Quantity: 5, Expiry: &expCopy}
	if SameItems(a, b) {
		t.Error("Expected different quantities to differ")
	}

	b["eggs"] = Item{ID: "eggs", Quantity: 6}
	if SameItems(a, b) {
		t.Error("Expected missing expiry to differ")
	}
}

func TestSameItemsComparesExportedNames(t *testing.T) {
	exported := map[string]Item{"eggs": {ID: "eggs", Name: "Αυγά", Quantity: 6}}
	translated := map[string]Item{"eggs": {ID: "eggs", Name: "Eggs", SourceName: "Αυγά", Quantity: 6}}

	if !SameItems(translated, exported) {
		t.Error("Expected a translated item to equal its exported payload")
	}

	exported["eggs"] = Item{ID: "eggs", Name: "Αυγά βιολογικά", Quantity: 6}
	if SameItems(translated, exported) {
		t.Error("Expected a renamed export to differ")
	}
}

func TestSnapshotClone(t *testing.T) {
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	exp := want
	snap := Snapshot{Version: 1, Items: map[string]Item{"eggs": {ID: "eggs", Quantity: 6, Expiry: &exp}}}

	clone := snap.Clone()
	*snap.Items["eggs"].Expiry = want.Add(time.Hour)
	clone.Items["milk"] = Item{ID: "milk", Quantity: 1}

	if !clone.Items["eggs"].Expiry.Equal(want) {
		t.Error("Expected clone expiry to be independent of the original")
	}
	if _, ok := snap.Items["milk"]; ok {
		t.Error("Expected clone mutation not to leak into the original")
	}
}

func TestItemExpiredAt(t *testing.T) {
	exp := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	item := Item{ID: "milk", Expiry: &exp}

	if item.ExpiredAt(exp.Add(-time.Second)) {
		t.Error("Expected item to be usable before expiry")
	}
	if !item.ExpiredAt(exp) {
		t.Error("Expected item to be expired at its expiry instant")
	}
	if (Item{ID: "salt"}).ExpiredAt(exp) {
		t.Error("Expected item without expiry never to expire")
	}
}
