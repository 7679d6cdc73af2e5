package receipt

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"lastkingz/backend/internal/domain"
)

func sampleReceipt() Receipt {
	return Receipt{
		StoreName: "Last Kingz Liquor",
		Sale: domain.Sale{
			ID:                "sale-test1",
			TotalCents:        2998,
			CashReceivedCents: 5000,
			ChangeCents:       2002,
			PaymentMethod:     domain.PaymentCash,
			CreatedAt:         time.Date(2026, 8, 14, 18, 30, 0, 0, time.UTC),
		},
		Items: []domain.SaleItem{
			{Name: "Budweiser 12pk", UnitPriceCents: 1499, Qty: 2, SubtotalCents: 2998},
		},
	}
}

func TestFormatTextLinesFitWidth(t *testing.T) {
	text := sampleReceipt().FormatText()

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if len(line) > Width {
			t.Fatalf("line exceeds %d columns: %q", Width, line)
		}
	}
	for _, want := range []string{"Last Kingz Liquor", "Budweiser 12pk", "$29.98", "$50.00", "$20.02", "CHANGE"} {
		if !strings.Contains(text, want) {
			t.Fatalf("receipt missing %q:\n%s", want, text)
		}
	}
}

func TestFormatTextAlignsMultibyteNames(t *testing.T) {
	r := sampleReceipt()
	r.Items = []domain.SaleItem{
		{Name: "Crème de Cassis 700ml", UnitPriceCents: 1899, Qty: 1, SubtotalCents: 1899},
	}
	r.Sale.TotalCents = 1899
	text := r.FormatText()

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if n := utf8.RuneCountInString(line); n > Width {
			t.Fatalf("line exceeds %d columns (%d runes): %q", Width, n, line)
		}
	}
	// Two-column rows pad to the full tape width; the accented name must not
	// shift the right-hand amounts.
	for _, line := range strings.Split(text, "\n") {
		if strings.HasSuffix(line, "$18.99") {
			if n := utf8.RuneCountInString(line); n != Width {
				t.Fatalf("expected amount flush at column %d, got %d: %q", Width, n, line)
			}
		}
	}
}

func TestFormatTextElectronicOmitsCashLines(t *testing.T) {
	r := sampleReceipt()
	r.Sale.PaymentMethod = domain.PaymentElectronic
	text := r.FormatText()

	if strings.Contains(text, "CHANGE") {
		t.Fatalf("electronic receipt must not show change:\n%s", text)
	}
	if !strings.Contains(text, "ELECTRONIC") {
		t.Fatalf("expected payment method line:\n%s", text)
	}
}

func TestBuildESCPOSFraming(t *testing.T) {
	data := sampleReceipt().BuildESCPOS()

	if !bytes.HasPrefix(data, []byte{0x1B, 0x40}) {
		t.Fatal("stream must start with printer init")
	}
	if !bytes.HasSuffix(data, []byte{0x1D, 0x56, 0x00}) {
		t.Fatal("stream must end with paper cut")
	}
	if bytes.Contains(data, DrawerPulse()) {
		t.Fatal("drawer kick must not be embedded in the receipt stream")
	}
}

func TestDrawerPulseSequence(t *testing.T) {
	want := []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
	if !bytes.Equal(DrawerPulse(), want) {
		t.Fatalf("unexpected drawer pulse: %x", DrawerPulse())
	}
}

func TestFilePrinterWritesPreview(t *testing.T) {
	dir := t.TempDir()
	p := FilePrinter{Dir: dir}

	if err := p.Print(nil, "preview body\n"); err != nil {
		t.Fatalf("print: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 receipt file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "receipt_") || !strings.HasSuffix(name, ".txt") {
		t.Fatalf("unexpected file name %q", name)
	}
	body, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(body) != "preview body\n" {
		t.Fatalf("unexpected body %q", body)
	}
}
