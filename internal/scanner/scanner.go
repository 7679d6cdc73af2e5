// Package scanner decodes keyboard-wedge barcode scanner input. These
// scanners type the barcode as rapid keystrokes and finish with Enter.
package scanner

import "strings"

// Decoder accumulates keystrokes until an Enter terminator and then emits
// the buffered barcode. It holds no timing state: wedge scanners type fast
// enough that interleaving with human typing is not a concern at checkout.
type Decoder struct {
	buf strings.Builder
}

// Feed consumes one keystroke. It returns the completed barcode and true
// when the keystroke is the Enter terminator, otherwise ("", false).
// Non-digit keystrokes are dropped so stray modifier output cannot corrupt
// the scan.
func (d *Decoder) Feed(key rune) (string, bool) {
	if key == '\r' || key == '\n' {
		code := d.buf.String()
		d.buf.Reset()
		if code == "" {
			return "", false
		}
		return code, true
	}
	if key >= '0' && key <= '9' {
		d.buf.WriteRune(key)
	}
	return "", false
}

// Reset discards any partially buffered scan.
func (d *Decoder) Reset() {
	d.buf.Reset()
}

// Pending reports how many digits are buffered awaiting a terminator.
func (d *Decoder) Pending() int {
	return d.buf.Len()
}

// ValidateBarcode accepts UPC-A (12 digits) and EAN-13 (13 digits) codes.
func ValidateBarcode(code string) bool {
	if len(code) != 12 && len(code) != 13 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
