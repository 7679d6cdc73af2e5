package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/store"
)

func TestCommitSaleDecrementsStockConditionally(t *testing.T) {
	databaseURL := os.Getenv("POS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set POS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-commit-it-%d", stamp)
	barcode := fmt.Sprintf("99%011d", stamp%100000000000)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id IN (SELECT sale_id FROM sale_items WHERE product_id = $1)`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:                productID,
		Barcode:           barcode,
		Name:              "Commit IT Bourbon 750ml",
		PriceCents:        2999,
		Stock:             5,
		LowStockThreshold: 2,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	sale := domain.Sale{
		TotalCents:        5998,
		CashReceivedCents: 6000,
		ChangeCents:       2,
		PaymentMethod:     domain.PaymentCash,
	}
	items := []domain.SaleItem{{
		ProductID:      productID,
		Barcode:        barcode,
		Name:           "Commit IT Bourbon 750ml",
		UnitPriceCents: 2999,
		Qty:            2,
		SubtotalCents:  5998,
	}}

	saved, err := s.CommitSale(ctx, sale, items, []domain.StockDecrement{{ProductID: productID, Qty: 2}})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}

	got, err := s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 3 {
		t.Fatalf("expected stock 3 after commit, got %d", got.Stock)
	}

	detail, err := s.GetSale(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(detail.Items) != 1 || detail.Items[0].Qty != 2 {
		t.Fatalf("unexpected sale items: %+v", detail.Items)
	}

	// Oversell must roll back: stock stays at 3 and no second sale is written.
	_, err = s.CommitSale(ctx, sale, items, []domain.StockDecrement{{ProductID: productID, Qty: 4}})
	if !errors.Is(err, store.ErrStockConflict) {
		t.Fatalf("expected ErrStockConflict, got %v", err)
	}
	got, err = s.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product after conflict: %v", err)
	}
	if got.Stock != 3 {
		t.Fatalf("expected stock unchanged at 3, got %d", got.Stock)
	}
}
