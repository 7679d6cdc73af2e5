package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lastkingz/backend/internal/cache"
	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/store"
	"lastkingz/backend/internal/store/memory"
)

type recordingPrinter struct {
	mu     sync.Mutex
	prints int
	fail   bool
}

func (p *recordingPrinter) Print(_ []byte, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("printer offline")
	}
	p.prints++
	return nil
}

func newTestService() (*Service, *memory.Store, *recordingPrinter) {
	repo := memory.NewSeeded()
	printer := &recordingPrinter{}
	svc := New(repo, cache.NoopProductCache{}, printer, "Last Kingz Liquor", 5*time.Minute)
	return svc, repo, printer
}

func managerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "manager", Role: domain.RoleManager})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier1", Role: domain.RoleCashier})
}

func TestCompleteSaleCashWithChange(t *testing.T) {
	svc, repo, printer := newTestService()

	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 2},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 5000,
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	if resp.TotalCents != 2998 {
		t.Fatalf("expected total 2998, got %d", resp.TotalCents)
	}
	if resp.ChangeCents != 2002 {
		t.Fatalf("expected change 2002, got %d", resp.ChangeCents)
	}
	if !resp.ReceiptPrinted || printer.prints != 1 {
		t.Fatalf("expected one printed receipt, got printed=%v count=%d", resp.ReceiptPrinted, printer.prints)
	}

	product, err := repo.GetProductByID(context.Background(), "prod-bud12")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 38 {
		t.Fatalf("expected stock 38 after sale, got %d", product.Stock)
	}

	detail, err := svc.GetSale(context.Background(), resp.SaleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if detail.Sale.CashierID != "cashier1" {
		t.Fatalf("expected cashier1 recorded, got %q", detail.Sale.CashierID)
	}
}

func TestCompleteSaleChargesSnapshotPriceAfterCatalogEdit(t *testing.T) {
	svc, _, _ := newTestService()

	// The register captured 1499 when the line was added. A manager raises
	// the price before the cashier hits checkout.
	price := int64(9999)
	if _, err := svc.UpdateProduct(managerCtx(), "prod-bud12", domain.ProductUpdateRequest{PriceCents: &price}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 2, UnitPriceCents: 1499},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 5000,
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	if resp.TotalCents != 2998 {
		t.Fatalf("expected snapshot total 2998, got %d", resp.TotalCents)
	}
	if resp.Items[0].UnitPriceCents != 1499 {
		t.Fatalf("expected snapshot price on sale item, got %d", resp.Items[0].UnitPriceCents)
	}

	// A line without a snapshot charges the current catalog price.
	resp, err = svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 10000,
	})
	if err != nil {
		t.Fatalf("complete sale without snapshot failed: %v", err)
	}
	if resp.TotalCents != 9999 {
		t.Fatalf("expected current price 9999, got %d", resp.TotalCents)
	}
}

func TestCompleteSaleRejectsNegativeSnapshotPrice(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1, UnitPriceCents: -1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 5000,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompleteSaleEmptyCart(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{PaymentMethod: domain.PaymentCash})
	var emptyErr *EmptyCartError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyCartError, got %v", err)
	}
}

func TestCompleteSaleBatchesUnknownRefs(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-ghost"}, Qty: 1},
			{Ref: domain.LineRef{Kind: domain.RefQuickSale, ID: "qs-ghost"}, Qty: 1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 10000,
	})

	var notFound *ProductNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProductNotFoundError, got %v", err)
	}
	if len(notFound.Missing) != 2 {
		t.Fatalf("expected both unknown refs reported, got %+v", notFound.Missing)
	}
}

func TestCompleteSaleBatchesStockShortages(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-hen750"}, Qty: 11},  // stock 10
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-jose750"}, Qty: 13}, // stock 12
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 1000000,
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(stockErr.Shortages) != 2 {
		t.Fatalf("expected 2 shortages, got %+v", stockErr.Shortages)
	}

	// Validation failures must not move stock.
	for id, want := range map[string]int{"prod-hen750": 10, "prod-jose750": 12, "prod-bud12": 40} {
		product, _ := repo.GetProductByID(context.Background(), id)
		if product.Stock != want {
			t.Fatalf("product %s: expected stock %d, got %d", id, want, product.Stock)
		}
	}
}

func TestCompleteSaleMergesDuplicateLinesBeforeStockCheck(t *testing.T) {
	svc, _, _ := newTestService()

	// 6 + 5 of a product with stock 10: each line alone fits, the merged
	// quantity does not.
	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-hen750"}, Qty: 6},
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-hen750"}, Qty: 5},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 1000000,
	})

	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError on merged quantity, got %v", err)
	}
	if len(stockErr.Shortages) != 1 || stockErr.Shortages[0].Requested != 11 {
		t.Fatalf("expected merged shortage of 11, got %+v", stockErr.Shortages)
	}
}

func TestCompleteSaleInsufficientPayment(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 2},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 2997,
	})

	var payErr *InsufficientPaymentError
	if !errors.As(err, &payErr) {
		t.Fatalf("expected InsufficientPaymentError, got %v", err)
	}
	if payErr.TotalCents != 2998 || payErr.CashReceivedCents != 2997 {
		t.Fatalf("unexpected amounts: %+v", payErr)
	}
}

func TestCompleteSaleElectronicChargesExactAmount(t *testing.T) {
	svc, _, _ := newTestService()

	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
		},
		PaymentMethod: domain.PaymentElectronic,
	})
	if err != nil {
		t.Fatalf("electronic sale failed: %v", err)
	}
	if resp.CashReceivedCents != resp.TotalCents || resp.ChangeCents != 0 {
		t.Fatalf("expected exact charge with no change, got %+v", resp)
	}
}

func TestCompleteSaleQuickSaleLinesBypassStock(t *testing.T) {
	svc, repo, _ := newTestService()

	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefQuickSale, ID: "qs-icebag"}, Qty: 50},
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 100000,
	})
	if err != nil {
		t.Fatalf("quick sale failed: %v", err)
	}
	if resp.TotalCents != 50*299+1499 {
		t.Fatalf("unexpected total %d", resp.TotalCents)
	}

	detail, _ := svc.GetSale(context.Background(), resp.SaleID)
	var quickLine *domain.SaleItem
	for i := range detail.Items {
		if detail.Items[i].ProductID == "" {
			quickLine = &detail.Items[i]
		}
	}
	if quickLine == nil || quickLine.Barcode != "QUICK-qs-icebag" {
		t.Fatalf("expected quick-sale snapshot line, got %+v", detail.Items)
	}

	product, _ := repo.GetProductByID(context.Background(), "prod-bud12")
	if product.Stock != 39 {
		t.Fatalf("catalog line must still decrement, got stock %d", product.Stock)
	}
}

func TestCompleteSaleLowStockAlert(t *testing.T) {
	svc, _, _ := newTestService()

	// Hennessy: stock 10, threshold 3. Selling 7 leaves exactly 3.
	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-hen750"}, Qty: 7},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 100000,
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	if len(resp.LowStockAlerts) != 1 {
		t.Fatalf("expected 1 low stock alert, got %+v", resp.LowStockAlerts)
	}
	alert := resp.LowStockAlerts[0]
	if alert.ProductID != "prod-hen750" || alert.Stock != 3 || alert.Threshold != 3 {
		t.Fatalf("unexpected alert %+v", alert)
	}
}

func TestCompleteSalePrinterFailureDoesNotFailSale(t *testing.T) {
	svc, _, printer := newTestService()
	printer.fail = true

	resp, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
		Lines: []domain.CheckoutLine{
			{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 1},
		},
		PaymentMethod:     domain.PaymentCash,
		CashReceivedCents: 2000,
	})
	if err != nil {
		t.Fatalf("sale must commit even when printing fails: %v", err)
	}
	if resp.ReceiptPrinted {
		t.Fatal("expected receipt_printed=false on printer failure")
	}
}

func TestCompleteSaleConcurrentConflictMapsToTypedError(t *testing.T) {
	svc, repo, _ := newTestService()

	if err := repo.SetStock(context.Background(), "prod-bud12", 5); err != nil {
		t.Fatalf("set stock: %v", err)
	}

	sell := func() error {
		_, err := svc.CompleteSale(cashierCtx(), domain.CheckoutRequest{
			Lines: []domain.CheckoutLine{
				{Ref: domain.LineRef{Kind: domain.RefCatalog, ID: "prod-bud12"}, Qty: 3},
			},
			PaymentMethod:     domain.PaymentCash,
			CashReceivedCents: 10000,
		})
		return err
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = sell()
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		var conflictErr *ConcurrentStockConflictError
		var stockErr *InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &conflictErr), errors.As(err, &stockErr):
			// Which one fires depends on whether the loser read stock
			// before or after the winner's commit.
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected one success and one conflict, got %d/%d", succeeded, conflicted)
	}
}

func TestCreateProductRequiresManager(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateProduct(cashierCtx(), domain.ProductCreateRequest{
		Barcode:    "049000050103",
		Name:       "Coors Light 6pk",
		PriceCents: 899,
		Stock:      24,
	})
	if err == nil {
		t.Fatal("expected cashier create product to fail")
	}
}

func TestCreateProductValidatesBarcode(t *testing.T) {
	svc, _, _ := newTestService()

	for _, barcode := range []string{"", "12345", "04900005010x"} {
		_, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
			Barcode:    barcode,
			Name:       "Bad Barcode",
			PriceCents: 100,
		})
		if !errors.Is(err, store.ErrInvalidInput) {
			t.Fatalf("barcode %q: expected ErrInvalidInput, got %v", barcode, err)
		}
	}
}

func TestCreateProductDuplicateBarcode(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateProduct(managerCtx(), domain.ProductCreateRequest{
		Barcode:    "018200530616", // seeded Budweiser barcode
		Name:       "Duplicate",
		PriceCents: 100,
	})
	var dupErr *DuplicateBarcodeError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateBarcodeError, got %v", err)
	}
	if dupErr.Barcode != "018200530616" {
		t.Fatalf("unexpected barcode in error: %s", dupErr.Barcode)
	}
}

func TestAdjustStockAddFloorsAtZero(t *testing.T) {
	svc, _, _ := newTestService()

	add := -1000
	product, err := svc.AdjustStock(managerCtx(), "prod-bud12", domain.StockAdjustRequest{Add: &add})
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if product.Stock != 0 {
		t.Fatalf("expected stock floored at 0, got %d", product.Stock)
	}
}

func TestAdjustStockRejectsSetAndAddTogether(t *testing.T) {
	svc, _, _ := newTestService()

	set, add := 5, 5
	_, err := svc.AdjustStock(managerCtx(), "prod-bud12", domain.StockAdjustRequest{Set: &set, Add: &add})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLookupBarcodeUsesCache(t *testing.T) {
	repo := memory.NewSeeded()
	c := &countingCache{inner: map[string]*domain.Product{}}
	svc := New(repo, c, nil, "Last Kingz Liquor", time.Minute)

	for i := 0; i < 3; i++ {
		product, err := svc.LookupBarcode(context.Background(), "018200530616")
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if product.ID != "prod-bud12" {
			t.Fatalf("unexpected product %+v", product)
		}
	}
	if c.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", c.sets)
	}
	if c.hits != 2 {
		t.Fatalf("expected two cache hits, got %d", c.hits)
	}
}

type countingCache struct {
	mu    sync.Mutex
	inner map[string]*domain.Product
	sets  int
	hits  int
}

func (c *countingCache) Get(_ context.Context, barcode string) (*domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.inner[barcode]; ok {
		c.hits++
		return p, true, nil
	}
	return nil, false, nil
}

func (c *countingCache) Set(_ context.Context, barcode string, p *domain.Product, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner[barcode] = p
	c.sets++
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, barcode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inner, barcode)
	return nil
}
