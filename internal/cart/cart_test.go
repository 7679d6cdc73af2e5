package cart

import (
	"testing"

	"lastkingz/backend/internal/domain"
)

func catalogLine(id string, price int64, qty int) Line {
	return Line{
		Ref:            domain.LineRef{Kind: domain.RefCatalog, ID: id},
		Barcode:        "04963406" + id,
		Name:           "product " + id,
		UnitPriceCents: price,
		Qty:            qty,
	}
}

func TestAddMergesSameRef(t *testing.T) {
	c := New()

	if err := c.Add(catalogLine("p1", 1499, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(catalogLine("p1", 1499, 2)); err != nil {
		t.Fatalf("add again: %v", err)
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}
	if lines[0].Qty != 3 {
		t.Fatalf("expected qty 3, got %d", lines[0].Qty)
	}
	if got := c.TotalCents(); got != 3*1499 {
		t.Fatalf("expected total %d, got %d", 3*1499, got)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	c := New()

	for _, qty := range []int{0, -1} {
		if err := c.Add(catalogLine("p1", 100, qty)); err != ErrInvalidQuantity {
			t.Fatalf("qty %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if !c.IsEmpty() {
		t.Fatal("cart should stay empty after rejected adds")
	}
}

func TestQuickSaleAndCatalogLinesAreDistinct(t *testing.T) {
	c := New()

	_ = c.Add(catalogLine("x1", 500, 1))
	_ = c.Add(Line{
		Ref:            domain.LineRef{Kind: domain.RefQuickSale, ID: "x1"},
		Name:           "ice bag",
		UnitPriceCents: 299,
		Qty:            1,
	})

	if len(c.Lines()) != 2 {
		t.Fatalf("expected 2 lines for same id with different kinds, got %d", len(c.Lines()))
	}
}

func TestRemoveIsNoOpForMissingRef(t *testing.T) {
	c := New()
	_ = c.Add(catalogLine("p1", 100, 1))

	c.Remove(domain.LineRef{Kind: domain.RefCatalog, ID: "other"})
	if len(c.Lines()) != 1 {
		t.Fatal("remove of absent ref must not change the cart")
	}

	c.Remove(domain.LineRef{Kind: domain.RefCatalog, ID: "p1"})
	if !c.IsEmpty() {
		t.Fatal("expected empty cart after removing the only line")
	}
}

func TestSetQuantityZeroRemovesLine(t *testing.T) {
	c := New()
	ref := domain.LineRef{Kind: domain.RefCatalog, ID: "p1"}
	_ = c.Add(catalogLine("p1", 100, 5))

	c.SetQuantity(ref, 2)
	if c.Lines()[0].Qty != 2 {
		t.Fatalf("expected qty 2, got %d", c.Lines()[0].Qty)
	}

	c.SetQuantity(ref, 0)
	if !c.IsEmpty() {
		t.Fatal("expected line removed when quantity set to 0")
	}
}

func TestLinesReturnsIndependentSnapshot(t *testing.T) {
	c := New()
	_ = c.Add(catalogLine("p1", 100, 1))

	lines := c.Lines()
	lines[0].Qty = 99

	if c.Lines()[0].Qty != 1 {
		t.Fatal("mutating the snapshot must not affect the cart")
	}
}

func TestLinesPreserveInsertionOrder(t *testing.T) {
	c := New()
	for _, id := range []string{"c", "a", "b"} {
		_ = c.Add(catalogLine(id, 100, 1))
	}
	// Merge into an existing line; order must not change.
	_ = c.Add(catalogLine("a", 100, 1))

	lines := c.Lines()
	got := []string{lines[0].Ref.ID, lines[1].Ref.ID, lines[2].Ref.ID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestItemCountAndClear(t *testing.T) {
	c := New()
	_ = c.Add(catalogLine("p1", 100, 2))
	_ = c.Add(catalogLine("p2", 200, 3))

	if c.ItemCount() != 5 {
		t.Fatalf("expected item count 5, got %d", c.ItemCount())
	}

	c.Clear()
	if !c.IsEmpty() || c.TotalCents() != 0 || c.ItemCount() != 0 {
		t.Fatal("expected cleared cart to be empty")
	}
}
