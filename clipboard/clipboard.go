// Package clipboard exports the shopping list as plain text.
package clipboard

import (
	"strings"

	cb "github.com/atotto/clipboard"

	"shopvox/shopping"
)

// Available reports whether a system clipboard tool was found.
func Available() bool { return !cb.Unsupported }

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}

// CopyList writes the list to the clipboard and returns what was written.
func CopyList(items []shopping.Item) (string, error) {
	text := FormatList(items)
	if err := cb.WriteAll(text); err != nil {
		return "", err
	}
	return text, nil
}

// FormatList renders the list grouped by category:
//
//	Dairy
//	- milk (2 l)
//	- eggs
func FormatList(items []shopping.Item) string {
	var b strings.Builder
	for i, g := range shopping.GroupByCategory(items) {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(title(g.Category))
		b.WriteByte('\n')
		for _, it := range g.Items {
			b.WriteString("- ")
			b.WriteString(it.Name)
			if q := it.QuantityLabel(); q != "" {
				b.WriteString(" (" + q + ")")
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
