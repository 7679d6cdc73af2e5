package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/store"
)

// PeriodRange resolves a named reporting period to a half-open UTC window
// [from, to). "week" starts on Monday; "all" spans the ledger's lifetime.
func PeriodRange(period string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case "", "today":
		return midnight, midnight.AddDate(0, 0, 1), nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), midnight, nil
	case "week":
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday belongs to the week that started last Monday
		}
		monday := midnight.AddDate(0, 0, -(weekday - 1))
		return monday, monday.AddDate(0, 0, 7), nil
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, 0), nil
	case "all":
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}

// CustomRange resolves explicit "2006-01-02" bounds to a half-open UTC
// window covering both days in full.
func CustomRange(fromDate string, toDate string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", fromDate)
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", toDate)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date %q precedes from date %q", toDate, fromDate)
	}
	return from, to.AddDate(0, 0, 1), nil
}

func (s *Service) SalesSummary(ctx context.Context, period string) (domain.SalesSummary, error) {
	from, to, err := PeriodRange(period, time.Now())
	if err != nil {
		return domain.SalesSummary{}, store.ErrInvalidInput
	}

	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}

	if period == "" {
		period = "today"
	}
	summary.Period = period
	summary.StartDate = from.Format("2006-01-02")
	summary.EndDate = to.AddDate(0, 0, -1).Format("2006-01-02")
	return summary, nil
}

// SalesSummaryRange is the custom-window variant of SalesSummary.
func (s *Service) SalesSummaryRange(ctx context.Context, fromDate string, toDate string) (domain.SalesSummary, error) {
	from, to, err := CustomRange(fromDate, toDate)
	if err != nil {
		return domain.SalesSummary{}, store.ErrInvalidInput
	}

	summary, err := s.repo.SalesSummary(ctx, from, to)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	summary.Period = "custom"
	summary.StartDate = fromDate
	summary.EndDate = toDate
	return summary, nil
}

func (s *Service) ListSales(ctx context.Context, period string) ([]domain.Sale, error) {
	from, to, err := PeriodRange(period, time.Now())
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListSales(ctx, from, to)
}

// ListSalesRange is the custom-window variant of ListSales.
func (s *Service) ListSalesRange(ctx context.Context, fromDate string, toDate string) ([]domain.Sale, error) {
	from, to, err := CustomRange(fromDate, toDate)
	if err != nil {
		return nil, store.ErrInvalidInput
	}
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleDetail, error) {
	detail, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	return *detail, nil
}

// CashierDailyReport aggregates one cashier's sales for a calendar day,
// broken down by payment method. An empty date means today.
func (s *Service) CashierDailyReport(ctx context.Context, cashierID string, date string) (domain.CashierDailyReport, error) {
	if cashierID == "" {
		return domain.CashierDailyReport{}, store.ErrInvalidInput
	}

	day := time.Now().UTC()
	if date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.CashierDailyReport{}, store.ErrInvalidInput
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	sales, err := s.repo.ListSales(ctx, from, to)
	if err != nil {
		return domain.CashierDailyReport{}, err
	}

	report := domain.CashierDailyReport{
		CashierID: cashierID,
		Date:      from.Format("2006-01-02"),
	}
	byMethod := make(map[string]*domain.PaymentBreakdown)
	for _, sale := range sales {
		if sale.CashierID != cashierID {
			continue
		}
		report.SaleCount++
		report.TotalRevenueCents += sale.TotalCents

		entry, ok := byMethod[sale.PaymentMethod]
		if !ok {
			entry = &domain.PaymentBreakdown{PaymentMethod: sale.PaymentMethod}
			byMethod[sale.PaymentMethod] = entry
		}
		entry.SaleCount++
		entry.TotalCents += sale.TotalCents
	}

	for _, entry := range byMethod {
		report.ByPayment = append(report.ByPayment, *entry)
	}
	sort.Slice(report.ByPayment, func(i, j int) bool {
		return report.ByPayment[i].PaymentMethod < report.ByPayment[j].PaymentMethod
	})
	return report, nil
}

func (s *Service) LowStockItems(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStock(ctx)
}

// InventoryReport is a whole-catalog snapshot for the manager dashboard.
func (s *Service) InventoryReport(ctx context.Context) (domain.InventoryReport, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return domain.InventoryReport{}, err
	}

	report := domain.InventoryReport{
		ProductCount:  len(products),
		LowStockItems: []domain.LowStockAlert{},
	}
	for _, p := range products {
		report.TotalStockUnits += p.Stock
		report.TotalInventoryValueCents += p.PriceCents * int64(p.Stock)
		if p.Stock == 0 {
			report.OutOfStockCount++
		}
		if p.Stock <= p.LowStockThreshold {
			report.LowStockCount++
			report.LowStockItems = append(report.LowStockItems, domain.LowStockAlert{
				ProductID: p.ID,
				Barcode:   p.Barcode,
				Name:      p.Name,
				Stock:     p.Stock,
				Threshold: p.LowStockThreshold,
			})
		}
	}

	sort.Slice(report.LowStockItems, func(i, j int) bool {
		if report.LowStockItems[i].Stock != report.LowStockItems[j].Stock {
			return report.LowStockItems[i].Stock < report.LowStockItems[j].Stock
		}
		return report.LowStockItems[i].Name < report.LowStockItems[j].Name
	})
	return report, nil
}
