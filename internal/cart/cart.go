package cart

import (
	"errors"

	"lastkingz/backend/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is one entry in a cart. Barcode, Name and UnitPriceCents are snapshots
// captured when the line was added; checkout totals are computed from these
// snapshots, not from the live catalog.
type Line struct {
	Ref            domain.LineRef
	Barcode        string
	Name           string
	UnitPriceCents int64
	Qty            int
}

func (l Line) SubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Qty)
}

// Cart accumulates lines keyed by ref. Adding the same ref twice merges
// quantities; the price snapshot of the first add wins. The cart performs no
// stock checks: availability is validated by the checkout engine.
type Cart struct {
	lines map[domain.LineRef]*Line
	order []domain.LineRef
}

func New() *Cart {
	return &Cart{lines: make(map[domain.LineRef]*Line)}
}

func (c *Cart) Add(line Line) error {
	if line.Qty < 1 {
		return ErrInvalidQuantity
	}
	if existing, ok := c.lines[line.Ref]; ok {
		existing.Qty += line.Qty
		return nil
	}
	stored := line
	c.lines[line.Ref] = &stored
	c.order = append(c.order, line.Ref)
	return nil
}

// Remove drops a line. Removing a ref that is not in the cart is a no-op.
func (c *Cart) Remove(ref domain.LineRef) {
	if _, ok := c.lines[ref]; !ok {
		return
	}
	delete(c.lines, ref)
	for i, r := range c.order {
		if r == ref {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line.
func (c *Cart) SetQuantity(ref domain.LineRef, qty int) {
	if qty < 1 {
		c.Remove(ref)
		return
	}
	if line, ok := c.lines[ref]; ok {
		line.Qty = qty
	}
}

func (c *Cart) TotalCents() int64 {
	total := int64(0)
	for _, line := range c.lines {
		total += line.SubtotalCents()
	}
	return total
}

// Lines returns a snapshot of the cart in insertion order. Mutating the
// returned slice does not affect the cart.
func (c *Cart) Lines() []Line {
	result := make([]Line, 0, len(c.order))
	for _, ref := range c.order {
		if line, ok := c.lines[ref]; ok {
			result = append(result, *line)
		}
	}
	return result
}

// ItemCount is the total unit count across all lines.
func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.lines {
		count += line.Qty
	}
	return count
}

func (c *Cart) Clear() {
	c.lines = make(map[domain.LineRef]*Line)
	c.order = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}
