// Package receipt renders sale receipts as 42-column text and as ESC/POS
// command streams for thermal printers, with a plain-file fallback when no
// printer is attached.
package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"lastkingz/backend/internal/domain"
)

// Width is the character width of a 80mm thermal printer at standard font.
const Width = 42

// ESC/POS command sequences.
var (
	escInit       = []byte{0x1B, 0x40}
	escBoldOn     = []byte{0x1B, 0x45, 0x01}
	escBoldOff    = []byte{0x1B, 0x45, 0x00}
	escAlignLeft  = []byte{0x1B, 0x61, 0x00}
	escAlignMid   = []byte{0x1B, 0x61, 0x01}
	escCut        = []byte{0x1D, 0x56, 0x00}
	escOpenDrawer = []byte{0x1B, 0x70, 0x00, 0x19, 0xFA}
)

// Printer delivers a rendered receipt to hardware or a fallback target.
type Printer interface {
	Print(escpos []byte, preview string) error
}

// Receipt is the renderable view of a committed sale.
type Receipt struct {
	StoreName string
	Sale      domain.Sale
	Items     []domain.SaleItem
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Column math counts runes, not bytes, so names with accented characters
// still line up on the 42-column tape.
func center(text string) string {
	n := utf8.RuneCountInString(text)
	if n >= Width {
		return text
	}
	pad := (Width - n) / 2
	return strings.Repeat(" ", pad) + text
}

func row(left string, right string) string {
	gap := Width - utf8.RuneCountInString(left) - utf8.RuneCountInString(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// FormatText renders the receipt as plain 42-column text. The same text is
// used for the file fallback and for on-screen previews.
func (r Receipt) FormatText() string {
	var b strings.Builder
	divider := strings.Repeat("-", Width)

	b.WriteString(center(r.StoreName) + "\n")
	b.WriteString(center(r.Sale.CreatedAt.Format("01/02/2006 03:04 PM")) + "\n")
	b.WriteString(center("Sale "+r.Sale.ID) + "\n")
	b.WriteString(divider + "\n")

	for _, item := range r.Items {
		b.WriteString(item.Name + "\n")
		qty := fmt.Sprintf("  %d x %s", item.Qty, formatCents(item.UnitPriceCents))
		b.WriteString(row(qty, formatCents(item.SubtotalCents)) + "\n")
	}

	b.WriteString(divider + "\n")
	b.WriteString(row("TOTAL", formatCents(r.Sale.TotalCents)) + "\n")
	if r.Sale.PaymentMethod == domain.PaymentCash {
		b.WriteString(row("CASH", formatCents(r.Sale.CashReceivedCents)) + "\n")
		b.WriteString(row("CHANGE", formatCents(r.Sale.ChangeCents)) + "\n")
	} else {
		b.WriteString(row("PAYMENT", strings.ToUpper(r.Sale.PaymentMethod)) + "\n")
	}
	b.WriteString(divider + "\n")
	b.WriteString(center("Thank you for your business!") + "\n")
	b.WriteString(center("Please drink responsibly.") + "\n")

	return b.String()
}

// BuildESCPOS renders the receipt as an ESC/POS byte stream ending with a
// paper cut. The drawer kick is not included; see DrawerPulse.
func (r Receipt) BuildESCPOS() []byte {
	var buf []byte
	buf = append(buf, escInit...)

	buf = append(buf, escAlignMid...)
	buf = append(buf, escBoldOn...)
	buf = append(buf, []byte(r.StoreName+"\n")...)
	buf = append(buf, escBoldOff...)
	buf = append(buf, []byte(r.Sale.CreatedAt.Format("01/02/2006 03:04 PM")+"\n")...)
	buf = append(buf, []byte("Sale "+r.Sale.ID+"\n")...)

	buf = append(buf, escAlignLeft...)
	divider := strings.Repeat("-", Width) + "\n"
	buf = append(buf, []byte(divider)...)
	for _, item := range r.Items {
		buf = append(buf, []byte(item.Name+"\n")...)
		qty := fmt.Sprintf("  %d x %s", item.Qty, formatCents(item.UnitPriceCents))
		buf = append(buf, []byte(row(qty, formatCents(item.SubtotalCents))+"\n")...)
	}
	buf = append(buf, []byte(divider)...)

	buf = append(buf, escBoldOn...)
	buf = append(buf, []byte(row("TOTAL", formatCents(r.Sale.TotalCents))+"\n")...)
	buf = append(buf, escBoldOff...)
	if r.Sale.PaymentMethod == domain.PaymentCash {
		buf = append(buf, []byte(row("CASH", formatCents(r.Sale.CashReceivedCents))+"\n")...)
		buf = append(buf, []byte(row("CHANGE", formatCents(r.Sale.ChangeCents))+"\n")...)
	} else {
		buf = append(buf, []byte(row("PAYMENT", strings.ToUpper(r.Sale.PaymentMethod))+"\n")...)
	}
	buf = append(buf, []byte(divider)...)

	buf = append(buf, escAlignMid...)
	buf = append(buf, []byte("Thank you for your business!\n")...)
	buf = append(buf, []byte("Please drink responsibly.\n\n\n")...)

	buf = append(buf, escCut...)
	return buf
}

// DrawerPulse returns the kick sequence for a drawer wired to pin 2 of the
// printer's RJ11 port.
func DrawerPulse() []byte {
	out := make([]byte, len(escOpenDrawer))
	copy(out, escOpenDrawer)
	return out
}

// FilePrinter writes the text preview to a timestamped file instead of
// sending ESC/POS bytes anywhere. Used when no thermal printer is configured.
type FilePrinter struct {
	Dir string
}

func (p FilePrinter) Print(_ []byte, preview string) error {
	dir := p.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("receipt_%s.txt", time.Now().Format("20060102_150405"))
	return os.WriteFile(filepath.Join(dir, name), []byte(preview), 0o644)
}
