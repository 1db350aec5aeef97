// Package inventory defines the stock model shared by the sync client, the
// snapshot store and the planning engine.
package inventory

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrInvalidData is matched by every *InvalidDataError.
var ErrInvalidData = errors.New("invalid inventory data")

// Item is a single stock line as exported by the inventory service.
// SourceName keeps the exported spelling when Name has been translated.
type Item struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SourceName string     `json:"source_name,omitempty"`
	Quantity   float64    `json:"quantity"`
	Unit       string     `json:"unit"`
	Expiry     *time.Time `json:"expiry,omitempty"`
}

func (i Item) exportedName() string {
	if i.SourceName != "" {
		return i.SourceName
	}
	return i.Name
}

// ExpiredAt reports whether the item is no longer usable at t.
func (i Item) ExpiredAt(t time.Time) bool {
	return i.Expiry != nil && !t.Before(*i.Expiry)
}

// Snapshot is an immutable, versioned capture of inventory state.
type Snapshot struct {
	Version    int64           `json:"version"`
	CapturedAt time.Time       `json:"captured_at"`
	Items      map[string]Item `json:"items"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Version:    s.Version,
		CapturedAt: s.CapturedAt,
		Items:      make(map[string]Item, len(s.Items)),
	}
	for id, item := range s.Items {
		if item.Expiry != nil {
			exp := *item.Expiry
			item.Expiry = &exp
		}
		out.Items[id] = item
	}
	return out
}

// Age returns how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	if s.CapturedAt.IsZero() || now.Before(s.CapturedAt) {
		return 0
	}
	return now.Sub(s.CapturedAt)
}

// SameItems reports whether two item sets are content-equal as exported.
// Names compare by their source spelling, so a translated snapshot equals the
// untranslated payload it came from.
func SameItems(a, b map[string]Item) bool {
	if len(a) != len(b) {
		return false
	}
	for id, x := range a {
		y, ok := b[id]
		if !ok {
			return false
		}
		if x.ID != y.ID || x.exportedName() != y.exportedName() || x.Quantity != y.Quantity || x.Unit != y.Unit {
			return false
		}
		switch {
		case x.Expiry == nil && y.Expiry == nil:
		case x.Expiry == nil || y.Expiry == nil:
			return false
		case !x.Expiry.Equal(*y.Expiry):
			return false
		}
	}
	return true
}

// InvalidDataError describes a payload that failed validation. Every
// problem found is listed; nothing is silently dropped.
type InvalidDataError struct {
	Problems []string
	Cause    error
}

func (e *InvalidDataError) Error() string {
	msg := "invalid inventory data"
	if len(e.Problems) > 0 {
		msg += ": " + strings.Join(e.Problems, "; ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidDataError) Unwrap() error { return e.Cause }

// Is matches ErrInvalidData.
func (e *InvalidDataError) Is(target error) bool { return target == ErrInvalidData }

// Validate checks every item and indexes them by id. Quantities must be
// finite and non-negative and ids must be non-empty and unique.
func Validate(items []Item) (map[string]Item, error) {
	var problems []string
	out := make(map[string]Item, len(items))
	for i, item := range items {
		id := strings.TrimSpace(item.ID)
		if id == "" {
			problems = append(problems, fmt.Sprintf("item %d: missing id", i))
			continue
		}
		if math.IsNaN(item.Quantity) || math.IsInf(item.Quantity, 0) {
			problems = append(problems, fmt.Sprintf("item %q: quantity is not a finite number", id))
		} else if item.Quantity < 0 {
			problems = append(problems, fmt.Sprintf("item %q: negative quantity %g", id, item.Quantity))
		}
		if _, dup := out[id]; dup {
			problems = append(problems, fmt.Sprintf("item %q: duplicate id", id))
			continue
		}
		item.ID = id
		out[id] = item
	}
	if len(problems) > 0 {
		return nil, &InvalidDataError{Problems: problems}
	}
	return out, nil
}

// SortedIDs returns the item ids in ascending order.
func SortedIDs(items map[string]Item) []string {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
