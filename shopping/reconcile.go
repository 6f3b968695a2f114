package shopping

import "strings"

// Apply merges a server-confirmed item into items by identity. An existing
// entry is replaced in place; otherwise the item is appended. The input
// slice is never modified.
func Apply(items []Item, item Item) []Item {
	out := make([]Item, len(items), len(items)+1)
	copy(out, items)
	for i := range out {
		if out[i].ID == item.ID {
			out[i] = item
			return out
		}
	}
	return append(out, item)
}

// RemoveByID drops the entry with the given identity. Absent ids are a no-op.
func RemoveByID(items []Item, id ItemID) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// FindByName returns the first item whose name contains name, ignoring case.
func FindByName(items []Item, name string) (Item, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Item{}, false
	}
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), needle) {
			return it, true
		}
	}
	return Item{}, false
}

type Group struct {
	Category string
	Items    []Item
}

// GroupByCategory buckets items by display category, keeping the order in
// which each category first appears.
func GroupByCategory(items []Item) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, it := range items {
		cat := it.CategoryOrDefault()
		i, ok := index[cat]
		if !ok {
			i = len(groups)
			index[cat] = i
			groups = append(groups, Group{Category: cat})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}
