package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/receipt"
)

// ReprintReceipt rebuilds the print job for a committed sale. The ESC/POS
// bytes are returned base64-encoded for a browser-side print bridge; the
// preview is the same text the file fallback writes.
func (s *Service) ReprintReceipt(ctx context.Context, saleID string) (domain.HardwareReceiptResponse, error) {
	detail, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.HardwareReceiptResponse{}, err
	}

	r := receipt.Receipt{StoreName: s.storeName, Sale: detail.Sale, Items: detail.Items}
	s.logAudit(ctx, "receipt_reprint", "sale", saleID, "")

	return domain.HardwareReceiptResponse{
		SaleID:       saleID,
		EscposBase64: base64.StdEncoding.EncodeToString(r.BuildESCPOS()),
		PreviewText:  r.FormatText(),
		FileName:     fmt.Sprintf("receipt_%s.txt", detail.Sale.CreatedAt.Format("20060102_150405")),
	}, nil
}

// OpenCashDrawer returns the drawer kick pulse. Opening the drawer outside a
// cash sale is a manager action and is audited.
func (s *Service) OpenCashDrawer(ctx context.Context) (domain.CashDrawerOpenResponse, error) {
	if err := requireManager(ctx); err != nil {
		return domain.CashDrawerOpenResponse{}, err
	}

	s.logAudit(ctx, "cash_drawer_open", "drawer", "", time.Now().UTC().Format(time.RFC3339))
	return domain.CashDrawerOpenResponse{
		CommandBase64: base64.StdEncoding.EncodeToString(receipt.DrawerPulse()),
		Note:          "send to printer port to kick the drawer",
	}, nil
}
