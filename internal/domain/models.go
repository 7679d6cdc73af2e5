package domain

import "time"

// Product is a catalog entry tracked by stock. Barcode is unique across the
// catalog (UPC-A or EAN-13 for scanned items).
type Product struct {
	ID                string    `json:"id"`
	Barcode           string    `json:"barcode"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
}

// QuickSaleItem is a priced button on the register for goods that have no
// barcode and no tracked stock (ice bags, cup deposits, misc). Items are
// soft-deleted: Active=false hides them but preserves sale history references.
type QuickSaleItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Category     string `json:"category"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
	Active       bool   `json:"active"`
}

// LineRefKind discriminates what a cart line points at.
type LineRefKind string

const (
	RefCatalog   LineRefKind = "catalog"
	RefQuickSale LineRefKind = "quick_sale"
)

// LineRef identifies the source of a cart line: either a catalog product
// (tracked stock, validated at checkout) or a quick-sale item (no stock).
type LineRef struct {
	Kind LineRefKind `json:"kind"`
	ID   string      `json:"id"`
}

type Sale struct {
	ID                string    `json:"id"`
	TotalCents        int64     `json:"total_cents"`
	CashReceivedCents int64     `json:"cash_received_cents"`
	ChangeCents       int64     `json:"change_cents"`
	PaymentMethod     string    `json:"payment_method"`
	CashierID         string    `json:"cashier_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// SaleItem is an immutable line of a committed sale. Barcode, Name and
// UnitPriceCents are snapshots taken at sale time; later catalog edits do not
// rewrite history. ProductID is empty for quick-sale lines.
type SaleItem struct {
	SaleID         string `json:"sale_id"`
	ProductID      string `json:"product_id,omitempty"`
	Barcode        string `json:"barcode"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// StockDecrement is one conditional stock mutation applied during commit.
type StockDecrement struct {
	ProductID string
	Qty       int
}

// LowStockAlert is informational: raised post-commit when a product's stock
// fell to or below its threshold. It never blocks a sale.
type LowStockAlert struct {
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

const (
	PaymentCash       = "cash"
	PaymentElectronic = "electronic"
)

type ProductCreateRequest struct {
	Barcode           string `json:"barcode"`
	Name              string `json:"name"`
	PriceCents        int64  `json:"price_cents"`
	Stock             int    `json:"stock"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
}

type StockAdjustRequest struct {
	// Exactly one of Set or Add is used: Set replaces the level, Add is a
	// relative adjustment (negative allowed, floor at zero handled by service).
	Set *int `json:"set,omitempty"`
	Add *int `json:"add,omitempty"`
}

type QuickSaleItemCreateRequest struct {
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	Category     string `json:"category"`
	Icon         string `json:"icon,omitempty"`
	DisplayOrder int    `json:"display_order"`
}

type QuickSaleItemUpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	PriceCents   *int64  `json:"price_cents,omitempty"`
	Category     *string `json:"category,omitempty"`
	Icon         *string `json:"icon,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
}

// CheckoutLine is one line of a checkout request. UnitPriceCents is the price
// snapshot the register captured when the line was added; the charged total is
// computed from it, so a catalog price edit mid-session does not change an
// in-flight sale. Zero means no snapshot was taken and the current catalog
// price is charged.
type CheckoutLine struct {
	Ref            LineRef `json:"ref"`
	Qty            int     `json:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents,omitempty"`
}

type CheckoutRequest struct {
	Lines             []CheckoutLine `json:"lines"`
	PaymentMethod     string         `json:"payment_method"`
	CashReceivedCents int64          `json:"cash_received_cents"`
}

type CheckoutResponse struct {
	SaleID            string          `json:"sale_id"`
	TotalCents        int64           `json:"total_cents"`
	CashReceivedCents int64           `json:"cash_received_cents"`
	ChangeCents       int64           `json:"change_cents"`
	PaymentMethod     string          `json:"payment_method"`
	Items             []SaleItem      `json:"items"`
	LowStockAlerts    []LowStockAlert `json:"low_stock_alerts,omitempty"`
	ReceiptPrinted    bool            `json:"receipt_printed"`
	CreatedAt         string          `json:"created_at"`
}

type SalesSummary struct {
	SaleCount         int64  `json:"sale_count"`
	TotalRevenueCents int64  `json:"total_revenue_cents"`
	TotalCashCents    int64  `json:"total_cash_cents"`
	TotalChangeCents  int64  `json:"total_change_cents"`
	Period            string `json:"period,omitempty"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
}

type SaleDetail struct {
	Sale  Sale       `json:"sale"`
	Items []SaleItem `json:"items"`
}

type PaymentBreakdown struct {
	PaymentMethod string `json:"payment_method"`
	SaleCount     int64  `json:"sale_count"`
	TotalCents    int64  `json:"total_cents"`
}

type CashierDailyReport struct {
	CashierID         string             `json:"cashier_id"`
	Date              string             `json:"date"`
	SaleCount         int64              `json:"sale_count"`
	TotalRevenueCents int64              `json:"total_revenue_cents"`
	ByPayment         []PaymentBreakdown `json:"by_payment"`
}

type InventoryReport struct {
	ProductCount             int             `json:"product_count"`
	TotalStockUnits          int             `json:"total_stock_units"`
	TotalInventoryValueCents int64           `json:"total_inventory_value_cents"`
	LowStockCount            int             `json:"low_stock_count"`
	OutOfStockCount          int             `json:"out_of_stock_count"`
	LowStockItems            []LowStockAlert `json:"low_stock_items"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type HardwareReceiptRequest struct {
	SaleID string `json:"sale_id"`
}

type HardwareReceiptResponse struct {
	SaleID       string `json:"sale_id"`
	EscposBase64 string `json:"escpos_base64"`
	PreviewText  string `json:"preview_text"`
	FileName     string `json:"file_name"`
}

type CashDrawerOpenResponse struct {
	CommandBase64 string `json:"command_base64"`
	Note          string `json:"note"`
}

type BarcodeLookupResponse struct {
	Found   bool     `json:"found"`
	Product *Product `json:"product,omitempty"`
}

const (
	RoleCashier = "cashier"
	RoleManager = "manager"
)
