package clipboard

import (
	"testing"

	"shopvox/shopping"
)

func TestFormatList(t *testing.T) {
	items := []shopping.Item{
		{ID: "1", Name: "milk", Category: "dairy", Quantity: 2, Unit: "l"},
		{ID: "2", Name: "apples", Category: "produce", Quantity: 6},
		{ID: "3", Name: "eggs", Category: "dairy"},
		{ID: "4", Name: "batteries"},
	}
	want := "Dairy\n- milk (2 l)\n- eggs\n\nProduce\n- apples (6)\n\n" +
		title(shopping.DefaultCategory) + "\n- batteries\n"
	if got := FormatList(items); got != want {
		t.Errorf("FormatList:\n%q\nwant\n%q", got, want)
	}
}

func TestFormatListEmpty(t *testing.T) {
	if got := FormatList(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestCopyListRoundTrip(t *testing.T) {
	if !Available() {
		t.Skip("no clipboard tool")
	}
	items := []shopping.Item{{ID: "1", Name: "bread", Category: "bakery"}}
	text, err := CopyList(items)
	if err != nil {
		t.Skipf("clipboard not usable here: %v", err)
	}
	got, err := Read()
	if err != nil {
		t.Fatal(err)
	}
	if got != text {
		t.Errorf("clipboard = %q, want %q", got, text)
	}
}
