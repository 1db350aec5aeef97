package exporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"meal-planner/internal/inventory"
)

// wireItem accepts both the documented field names and the column names of
// the spreadsheet-era export (item_name, quantity_in_stock).
type wireItem struct {
	ID              flexString  `json:"id"`
	Name            string      `json:"name"`
	ItemName        string      `json:"item_name"`
	Quantity        *flexNumber `json:"quantity"`
	QuantityInStock *flexNumber `json:"quantity_in_stock"`
	Unit            string      `json:"unit"`
	Expiry          string      `json:"expiry"`
}

type envelope struct {
	Items []wireItem `json:"items"`
}

// DecodeItems parses an export payload: either {"items": [...]} or a bare
// array. Structural problems are reported as *inventory.InvalidDataError.
func DecodeItems(data []byte) ([]inventory.Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &inventory.InvalidDataError{Problems: []string{"empty payload"}}
	}

	var raw []wireItem
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &inventory.InvalidDataError{Cause: fmt.Errorf("failed to decode response: %w", err)}
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &inventory.InvalidDataError{Cause: fmt.Errorf("failed to decode response: %w", err)}
		}
		if env.Items == nil {
			return nil, &inventory.InvalidDataError{Problems: []string{`missing "items" field`}}
		}
		raw = env.Items
	default:
		return nil, &inventory.InvalidDataError{Problems: []string{"payload is neither a JSON object nor an array"}}
	}

	var problems []string
	items := make([]inventory.Item, 0, len(raw))
	for i, w := range raw {
		item, itemProblems := w.toItem(i)
		problems = append(problems, itemProblems...)
		items = append(items, item)
	}
	if len(problems) > 0 {
		return nil, &inventory.InvalidDataError{Problems: problems}
	}
	return items, nil
}

func (w wireItem) toItem(index int) (inventory.Item, []string) {
	label := string(w.ID)
	if label == "" {
		label = fmt.Sprintf("#%d", index)
	}

	var problems []string
	item := inventory.Item{
		ID:   strings.TrimSpace(string(w.ID)),
		Name: strings.TrimSpace(w.Name),
		Unit: strings.TrimSpace(w.Unit),
	}
	if item.Name == "" {
		item.Name = strings.TrimSpace(w.ItemName)
	}

	qty := w.Quantity
	if qty == nil {
		qty = w.QuantityInStock
	}
	switch {
	case qty == nil:
		problems = append(problems, fmt.Sprintf("item %s: missing quantity", label))
	case !qty.valid:
		problems = append(problems, fmt.Sprintf("item %s: quantity %q is not a number", label, qty.raw))
	default:
		item.Quantity = qty.value
	}

	if exp := strings.TrimSpace(w.Expiry); exp != "" {
		t, err := parseExpiry(exp)
		if err != nil {
			problems = append(problems, fmt.Sprintf("item %s: %v", label, err))
		} else {
			item.Expiry = &t
		}
	}
	return item, problems
}

// parseExpiry accepts RFC 3339 timestamps and calendar dates. A date means
// the item is usable through that day, so it expires at the next midnight UTC.
func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return d.AddDate(0, 0, 1), nil
	}
	return time.Time{}, fmt.Errorf("unparseable expiry %q", s)
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexNumber decodes a JSON number or numeric string. Non-numeric values are
// kept so validation can report them instead of failing the whole decode.
type flexNumber struct {
	value float64
	valid bool
	raw   string
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.raw = string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f.raw = s
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			f.value, f.valid = v, true
		}
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.value, f.valid = v, true
	return nil
}
