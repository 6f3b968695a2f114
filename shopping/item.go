// Package shopping holds the client-side shopping list model and the
// reconciliation rules that merge server responses into it.
package shopping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCategory is shown for items the server left uncategorized.
const DefaultCategory = "Other"

// ItemID is the server-assigned identity of a list entry. The backend
// sends integers; the client treats the value as opaque.
type ItemID string

func (id ItemID) String() string { return string(id) }

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON writes canonical integers as numbers. Anything else, "007"
// or "+5" included, stays a string.
func (id ItemID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

type Item struct {
	ID       ItemID   `json:"id"`
	Name     string   `json:"item_name"`
	Category string   `json:"category,omitempty"`
	Quantity float64  `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

// CategoryOrDefault returns the display category.
func (it Item) CategoryOrDefault() string {
	if strings.TrimSpace(it.Category) == "" {
		return DefaultCategory
	}
	return it.Category
}

// QuantityLabel renders "2 kg", "3" or "" when no quantity was given.
func (it Item) QuantityLabel() string {
	if it.Quantity <= 0 {
		return ""
	}
	q := strconv.FormatFloat(it.Quantity, 'f', -1, 64)
	if it.Unit == "" {
		return q
	}
	return q + " " + it.Unit
}

type CommandKind string

const (
	CommandAdd    CommandKind = "add"
	CommandRemove CommandKind = "remove"
)

// Command is the interpreter's structured reading of one utterance.
// Kinds other than add and remove are possible from newer interpreters.
type Command struct {
	Kind     CommandKind `json:"command"`
	ItemName string      `json:"item_name"`
	Category string      `json:"category,omitempty"`
	Quantity float64     `json:"quantity,omitempty"`
	Unit     string      `json:"unit,omitempty"`
}

func (c Command) Known() bool {
	return c.Kind == CommandAdd || c.Kind == CommandRemove
}

// Label renders "milk (2 l)", "milk (2)" or just "milk".
func (c Command) Label() string {
	q := Item{Quantity: c.Quantity, Unit: c.Unit}.QuantityLabel()
	if q == "" {
		return c.ItemName
	}
	return c.ItemName + " (" + q + ")"
}

type Suggestion struct {
	Item       string  `json:"item"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
	Type       string  `json:"suggestion_type"`
	Confidence float64 `json:"confidence,omitempty"`
}

type HistoryEntry struct {
	ItemName      string `json:"item_name"`
	Category      string `json:"category"`
	Frequency     int    `json:"frequency"`
	LastPurchased string `json:"last_purchased"`
}
