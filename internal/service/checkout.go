package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lastkingz/backend/internal/cart"
	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/receipt"
	"lastkingz/backend/internal/store"
)

// CompleteSale runs a checkout in two passes. The first pass validates the
// whole cart and batches every problem it finds; nothing is written until all
// checks pass. The second pass is a single atomic commit: the sale record,
// its item lines, and every stock decrement succeed or fail together.
//
// Validation order: empty cart, unknown refs, stock availability, payment
// sufficiency. Receipt printing and low-stock alerts run after the commit and
// never fail the sale.
func (s *Service) CompleteSale(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.Lines) == 0 {
		return domain.CheckoutResponse{}, &EmptyCartError{}
	}
	for _, line := range req.Lines {
		if line.Qty < 1 || line.Ref.ID == "" || line.UnitPriceCents < 0 {
			return domain.CheckoutResponse{}, store.ErrInvalidInput
		}
		if line.Ref.Kind != domain.RefCatalog && line.Ref.Kind != domain.RefQuickSale {
			return domain.CheckoutResponse{}, store.ErrInvalidInput
		}
	}

	c, products, err := s.resolveCart(ctx, req.Lines)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	// Stock is validated on merged quantities so two lines for the same
	// product cannot pass individually and fail in aggregate.
	var shortages []StockShortage
	for _, line := range c.Lines() {
		if line.Ref.Kind != domain.RefCatalog {
			continue
		}
		product := products[line.Ref.ID]
		if line.Qty > product.Stock {
			shortages = append(shortages, StockShortage{
				ProductID: product.ID,
				Barcode:   product.Barcode,
				Name:      product.Name,
				Requested: line.Qty,
				Available: product.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return domain.CheckoutResponse{}, &InsufficientStockError{Shortages: shortages}
	}

	total := c.TotalCents()
	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	if method != domain.PaymentCash && method != domain.PaymentElectronic {
		return domain.CheckoutResponse{}, store.ErrInvalidInput
	}

	cashReceived := req.CashReceivedCents
	if method == domain.PaymentElectronic {
		// Card terminals charge the exact amount.
		cashReceived = total
	}
	if cashReceived < total {
		return domain.CheckoutResponse{}, &InsufficientPaymentError{TotalCents: total, CashReceivedCents: cashReceived}
	}

	sale := domain.Sale{
		TotalCents:        total,
		CashReceivedCents: cashReceived,
		ChangeCents:       cashReceived - total,
		PaymentMethod:     method,
		CreatedAt:         time.Now().UTC(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		sale.CashierID = actor.Username
	}

	items := make([]domain.SaleItem, 0, len(c.Lines()))
	decrements := make([]domain.StockDecrement, 0, len(c.Lines()))
	for _, line := range c.Lines() {
		item := domain.SaleItem{
			Barcode:        line.Barcode,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			SubtotalCents:  line.SubtotalCents(),
		}
		if line.Ref.Kind == domain.RefCatalog {
			item.ProductID = line.Ref.ID
			decrements = append(decrements, domain.StockDecrement{ProductID: line.Ref.ID, Qty: line.Qty})
		}
		items = append(items, item)
	}

	saved, err := s.repo.CommitSale(ctx, sale, items, decrements)
	if err != nil {
		if errors.Is(err, store.ErrStockConflict) {
			return domain.CheckoutResponse{}, &ConcurrentStockConflictError{Err: err}
		}
		return domain.CheckoutResponse{}, err
	}

	for _, dec := range decrements {
		s.invalidateProduct(ctx, products[dec.ProductID].Barcode)
	}

	resp := domain.CheckoutResponse{
		SaleID:            saved.ID,
		TotalCents:        saved.TotalCents,
		CashReceivedCents: saved.CashReceivedCents,
		ChangeCents:       saved.ChangeCents,
		PaymentMethod:     saved.PaymentMethod,
		Items:             items,
		LowStockAlerts:    s.lowStockAlerts(ctx, decrements),
		CreatedAt:         saved.CreatedAt.Format(time.RFC3339),
	}

	s.logAudit(ctx, "sale_commit", "sale", saved.ID, fmt.Sprintf("total=%d,method=%s,items=%d", saved.TotalCents, saved.PaymentMethod, len(items)))

	if s.printer != nil {
		r := receipt.Receipt{StoreName: s.storeName, Sale: *saved, Items: items}
		if err := s.printer.Print(r.BuildESCPOS(), r.FormatText()); err != nil {
			log.Printf("[service] WARN: receipt print failed sale=%s: %v", saved.ID, err)
		} else {
			resp.ReceiptPrinted = true
		}
	}

	return resp, nil
}

// resolveCart looks up every referenced product and quick-sale item in two
// batched reads, reporting all unknown refs at once, and builds the cart.
// Lines carrying a register snapshot keep it; lines without one are priced
// from the catalog at this moment.
func (s *Service) resolveCart(ctx context.Context, lines []domain.CheckoutLine) (*cart.Cart, map[string]domain.Product, error) {
	var productIDs, quickIDs []string
	for _, line := range lines {
		switch line.Ref.Kind {
		case domain.RefCatalog:
			productIDs = append(productIDs, line.Ref.ID)
		case domain.RefQuickSale:
			quickIDs = append(quickIDs, line.Ref.ID)
		}
	}

	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, nil, err
	}
	quickItems, err := s.repo.GetQuickSaleItemsByIDs(ctx, quickIDs)
	if err != nil {
		return nil, nil, err
	}

	var missing []domain.LineRef
	seen := make(map[domain.LineRef]bool)
	for _, line := range lines {
		if seen[line.Ref] {
			continue
		}
		seen[line.Ref] = true
		switch line.Ref.Kind {
		case domain.RefCatalog:
			if _, ok := products[line.Ref.ID]; !ok {
				missing = append(missing, line.Ref)
			}
		case domain.RefQuickSale:
			if _, ok := quickItems[line.Ref.ID]; !ok {
				missing = append(missing, line.Ref)
			}
		}
	}
	if len(missing) > 0 {
		return nil, nil, &ProductNotFoundError{Missing: missing}
	}

	c := cart.New()
	for _, line := range lines {
		var entry cart.Line
		switch line.Ref.Kind {
		case domain.RefCatalog:
			product := products[line.Ref.ID]
			// The register's add-time snapshot wins over the current
			// catalog price: a price edit mid-session must not change
			// what an in-flight sale charges.
			unitPrice := product.PriceCents
			if line.UnitPriceCents > 0 {
				unitPrice = line.UnitPriceCents
			}
			entry = cart.Line{
				Ref:            line.Ref,
				Barcode:        product.Barcode,
				Name:           product.Name,
				UnitPriceCents: unitPrice,
				Qty:            line.Qty,
			}
		case domain.RefQuickSale:
			item := quickItems[line.Ref.ID]
			unitPrice := item.PriceCents
			if line.UnitPriceCents > 0 {
				unitPrice = line.UnitPriceCents
			}
			entry = cart.Line{
				Ref:            line.Ref,
				Barcode:        "QUICK-" + item.ID,
				Name:           item.Name,
				UnitPriceCents: unitPrice,
				Qty:            line.Qty,
			}
		}
		if err := c.Add(entry); err != nil {
			return nil, nil, store.ErrInvalidInput
		}
	}
	return c, products, nil
}

// lowStockAlerts re-reads the products touched by a committed sale and
// reports the ones at or below their threshold. Errors degrade to "no
// alerts": the sale is already committed and must not be failed here.
func (s *Service) lowStockAlerts(ctx context.Context, decrements []domain.StockDecrement) []domain.LowStockAlert {
	if len(decrements) == 0 {
		return nil
	}
	ids := make([]string, 0, len(decrements))
	for _, dec := range decrements {
		ids = append(ids, dec.ProductID)
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		log.Printf("[service] WARN: low-stock check failed: %v", err)
		return nil
	}

	var alerts []domain.LowStockAlert
	for _, id := range ids {
		product, ok := products[id]
		if !ok || product.Stock > product.LowStockThreshold {
			continue
		}
		alerts = append(alerts, domain.LowStockAlert{
			ProductID: product.ID,
			Barcode:   product.Barcode,
			Name:      product.Name,
			Stock:     product.Stock,
			Threshold: product.LowStockThreshold,
		})
	}
	return alerts
}
