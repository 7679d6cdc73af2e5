package service

import (
	"fmt"
	"strings"

	"lastkingz/backend/internal/domain"
)

// EmptyCartError rejects a checkout with no lines.
type EmptyCartError struct{}

func (*EmptyCartError) Error() string {
	return "cart is empty"
}

// ProductNotFoundError reports every unresolvable line ref in one error so
// the cashier can fix the whole cart in a single pass.
type ProductNotFoundError struct {
	Missing []domain.LineRef
}

func (e *ProductNotFoundError) Error() string {
	refs := make([]string, 0, len(e.Missing))
	for _, ref := range e.Missing {
		refs = append(refs, fmt.Sprintf("%s/%s", ref.Kind, ref.ID))
	}
	return "unknown items: " + strings.Join(refs, ", ")
}

// StockShortage is one line whose requested quantity exceeds availability.
type StockShortage struct {
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError batches all shortages found during validation.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (want %d, have %d)", s.Name, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

type InsufficientPaymentError struct {
	TotalCents        int64
	CashReceivedCents int64
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: received %d of %d cents", e.CashReceivedCents, e.TotalCents)
}

type DuplicateBarcodeError struct {
	Barcode string
}

func (e *DuplicateBarcodeError) Error() string {
	return fmt.Sprintf("barcode %s is already registered", e.Barcode)
}

// ConcurrentStockConflictError means stock moved between validation and
// commit. Nothing was written; the checkout can be retried as-is.
type ConcurrentStockConflictError struct {
	Err error
}

func (e *ConcurrentStockConflictError) Error() string {
	return fmt.Sprintf("stock changed during checkout, retry: %v", e.Err)
}

func (e *ConcurrentStockConflictError) Unwrap() error {
	return e.Err
}
