package order

import (
	"errors"
	"math"
	"testing"
)

func mustEdit(t *testing.T, l Line, field Field, value string) Line {
	t.Helper()
	next, err := ApplyEdit(l, Edit{Field: field, Value: value})
	if err != nil {
		t.Fatalf("edit %s=%q: %v", field, value, err)
	}
	return next
}

func TestUnitsPerBoxEditRecomputesBoxPrice(t *testing.T) {
	l := Line{Quantity: "", UnitPrice: "10", UnitsPerBox: "5", IsPricePerBox: false}

	l = mustEdit(t, l, FieldUnitsPerBox, "10")

	if l.BoxPrice != "100" {
		t.Fatalf("expected boxPrice 100, got %q", l.BoxPrice)
	}
	if l.Quantity.IsSet() {
		t.Fatalf("expected quantity to stay unset, got %q", l.Quantity)
	}
	if got := ItemTotal(l); got != 0 {
		t.Fatalf("expected item total 0, got %v", got)
	}
}

func TestSwitchToBoxesRoundsUp(t *testing.T) {
	l := Line{Quantity: "12", UnitsPerBox: "5"}

	l = mustEdit(t, l, FieldOrderByBox, "true")

	if l.BoxQuantity != "3" {
		t.Fatalf("expected boxQuantity 3, got %q", l.BoxQuantity)
	}
	if l.Quantity != "12" {
		t.Fatalf("quantity must not change on toggle, got %q", l.Quantity)
	}
}

func TestSwitchToBoxesDefaultsBoxQuantity(t *testing.T) {
	l := Line{UnitsPerBox: "4", UnitPrice: "2.5"}

	l = mustEdit(t, l, FieldOrderByBox, "true")

	if l.BoxQuantity != "1" {
		t.Fatalf("expected default boxQuantity 1, got %q", l.BoxQuantity)
	}
	if l.BoxPrice != "10" {
		t.Fatalf("expected boxPrice 10, got %q", l.BoxPrice)
	}
}

// 已填写的数量（包括0）覆盖默认箱数
func TestSwitchToBoxesTypedZeroQuantity(t *testing.T) {
	l := Line{Quantity: "0", UnitsPerBox: "5"}

	l = mustEdit(t, l, FieldOrderByBox, "true")

	if l.BoxQuantity != "0" {
		t.Fatalf("expected boxQuantity 0 from typed quantity, got %q", l.BoxQuantity)
	}
}

func TestSwitchToUnitsRecomputesQuantity(t *testing.T) {
	l := Line{OrderByBox: true, BoxQuantity: "3", UnitsPerBox: "6"}

	l = mustEdit(t, l, FieldOrderByBox, "false")

	if l.Quantity != "18" {
		t.Fatalf("expected quantity 18, got %q", l.Quantity)
	}
}

func TestOrderByBoxRoundTrip(t *testing.T) {
	l := Line{UnitsPerBox: "5"}
	l = mustEdit(t, l, FieldOrderByBox, "true")
	l = mustEdit(t, l, FieldBoxQuantity, "4")
	want := l.Quantity

	l = mustEdit(t, l, FieldOrderByBox, "false")
	l = mustEdit(t, l, FieldOrderByBox, "true")

	if l.Quantity != want {
		t.Fatalf("round trip changed quantity: want %q, got %q", want, l.Quantity)
	}
}

// unitsPerBox 不能整除 quantity 时，往返切换会向上取整到整箱
func TestOrderByBoxRoundTripLosesRemainder(t *testing.T) {
	l := Line{Quantity: "12", UnitsPerBox: "5"}

	l = mustEdit(t, l, FieldOrderByBox, "true")
	l = mustEdit(t, l, FieldOrderByBox, "false")

	if l.Quantity != "15" {
		t.Fatalf("expected quantity rounded up to 15, got %q", l.Quantity)
	}
}

func TestBoxQuantityKeepsQuantityInSync(t *testing.T) {
	l := Line{OrderByBox: true, UnitsPerBox: "12"}

	for _, bq := range []string{"1", "2", "7", "", "3"} {
		l = mustEdit(t, l, FieldBoxQuantity, bq)
		if l.Quantity.Float() != l.BoxQuantity.Float()*l.BoxSize() {
			t.Fatalf("boxQuantity %q: quantity %q out of sync", bq, l.Quantity)
		}
	}

	l = mustEdit(t, l, FieldUnitsPerBox, "24")
	if l.Quantity != "72" {
		t.Fatalf("expected quantity 72 after unitsPerBox change, got %q", l.Quantity)
	}
}

func TestBoxQuantityIgnoredInUnitMode(t *testing.T) {
	l := Line{Quantity: "9", UnitsPerBox: "3"}

	l = mustEdit(t, l, FieldBoxQuantity, "5")

	if l.Quantity != "9" {
		t.Fatalf("quantity must not follow boxQuantity in unit mode, got %q", l.Quantity)
	}
}

func TestPricePerBoxInvariant(t *testing.T) {
	l := Line{UnitPrice: "3", UnitsPerBox: "4"}
	edits := []Edit{
		{FieldIsPricePerBox, "true"},
		{FieldBoxPrice, "30"},
		{FieldUnitsPerBox, "6"},
		{FieldBoxPrice, "17"},
		{FieldUnitsPerBox, "7"},
		{FieldBoxPrice, ""},
		{FieldBoxPrice, "9.99"},
		{FieldUnitsPerBox, "0"},
	}
	for _, e := range edits {
		var err error
		l, err = ApplyEdit(l, e)
		if err != nil {
			t.Fatalf("edit %+v: %v", e, err)
		}
		if !l.IsPricePerBox {
			continue
		}
		want := l.BoxPrice.Float() / l.BoxSize()
		if math.Abs(l.UnitPrice.Float()-want) > 1e-9 {
			t.Fatalf("after %+v: unitPrice %q, boxPrice %q, unitsPerBox %q", e, l.UnitPrice, l.BoxPrice, l.UnitsPerBox)
		}
	}
}

func TestPricePerBoxToggle(t *testing.T) {
	l := Line{UnitPrice: "2", UnitsPerBox: "10"}

	l = mustEdit(t, l, FieldIsPricePerBox, "true")
	if l.BoxPrice != "20" {
		t.Fatalf("expected boxPrice 20, got %q", l.BoxPrice)
	}

	l = mustEdit(t, l, FieldBoxPrice, "25")
	if l.UnitPrice != "2.5" {
		t.Fatalf("expected unitPrice 2.5, got %q", l.UnitPrice)
	}

	l = mustEdit(t, l, FieldIsPricePerBox, "false")
	if l.UnitPrice != "2.5" {
		t.Fatalf("expected unitPrice 2.5 after toggle off, got %q", l.UnitPrice)
	}
}

func TestUnitPriceEditRecomputesBoxPrice(t *testing.T) {
	l := Line{UnitsPerBox: "8"}

	l = mustEdit(t, l, FieldUnitPrice, "1.5")
	if l.BoxPrice != "12" {
		t.Fatalf("expected boxPrice 12, got %q", l.BoxPrice)
	}

	// 输入过程中的原文保持不变
	l = mustEdit(t, l, FieldUnitPrice, "1.")
	if l.UnitPrice != "1." {
		t.Fatalf("typed text must be preserved, got %q", l.UnitPrice)
	}

	l = mustEdit(t, l, FieldUnitPrice, "")
	if l.UnitPrice != "" || l.BoxPrice != "" {
		t.Fatalf("clearing unitPrice must clear boxPrice, got %q / %q", l.UnitPrice, l.BoxPrice)
	}
}

func TestDerivedFieldsRejected(t *testing.T) {
	cases := []struct {
		name string
		line Line
		edit Edit
	}{
		{"quantity while ordering by box", Line{OrderByBox: true}, Edit{FieldQuantity, "5"}},
		{"unitPrice while pricing per box", Line{IsPricePerBox: true}, Edit{FieldUnitPrice, "5"}},
		{"boxPrice while pricing per unit", Line{}, Edit{FieldBoxPrice, "5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ApplyEdit(tc.line, tc.edit)
			if !errors.Is(err, ErrDerivedField) {
				t.Fatalf("expected ErrDerivedField, got %v", err)
			}
			if got != tc.line {
				t.Fatalf("line must be unchanged, got %+v", got)
			}
		})
	}
}

func TestApplyEditErrors(t *testing.T) {
	if _, err := ApplyEdit(Line{}, Edit{Field: "colour", Value: "red"}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := ApplyEdit(Line{}, Edit{Field: FieldOrderByBox, Value: "maybe"}); !errors.Is(err, ErrInvalidFlag) {
		t.Fatalf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestApplyEditDoesNotMutateInput(t *testing.T) {
	orig := Line{Quantity: "4", UnitPrice: "2", UnitsPerBox: "2"}
	copyOf := orig

	_ = mustEdit(t, orig, FieldUnitsPerBox, "9")

	if orig != copyOf {
		t.Fatalf("input line mutated: %+v", orig)
	}
}

func TestMaterialEdit(t *testing.T) {
	l := mustEdit(t, Line{Quantity: "3"}, FieldMaterial, "mat-1")
	if l.MaterialID != "mat-1" || l.Quantity != "3" {
		t.Fatalf("unexpected line %+v", l)
	}
}

func TestItemTotalIsPure(t *testing.T) {
	l := Line{Quantity: "3", UnitPrice: "1.25"}
	first := ItemTotal(l)
	second := ItemTotal(l)
	if first != second || first != 3.75 {
		t.Fatalf("expected 3.75 twice, got %v and %v", first, second)
	}
	if l.Quantity != "3" || l.UnitPrice != "1.25" {
		t.Fatalf("item mutated: %+v", l)
	}
	if ItemTotal(Line{Quantity: "3"}) != 0 {
		t.Fatal("unset unit price must give 0")
	}
	if ItemTotal(Line{Quantity: "abc", UnitPrice: "2"}) != 0 {
		t.Fatal("unparsable quantity must give 0")
	}
}

func TestTotal(t *testing.T) {
	single := []Line{{Quantity: "2", UnitPrice: "5"}}
	if Total(single) != ItemTotal(single[0]) {
		t.Fatalf("single line total must equal item total")
	}

	lines := []Line{
		{Quantity: "2", UnitPrice: "5"},
		{Quantity: "0", UnitPrice: "100"},
		{Quantity: "1.5", UnitPrice: "4"},
		{},
	}
	var want float64
	for _, l := range lines {
		want += ItemTotal(l)
	}
	if got := Total(lines); got != want || got != 16 {
		t.Fatalf("expected total 16, got %v", got)
	}
}
