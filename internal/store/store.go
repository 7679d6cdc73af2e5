package store

import (
	"context"
	"errors"
	"time"

	"lastkingz/backend/internal/domain"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateBarcode = errors.New("duplicate barcode")
	ErrStockConflict    = errors.New("stock conflict")
	ErrInvalidInput     = errors.New("invalid input")
)

// Repository is the persistence contract for the POS backend. Two
// implementations exist: memory (dev mode and tests) and postgres.
//
// CommitSale is the only mutation a checkout performs: every stock decrement
// is conditional (applied only while enough stock remains) and the sale, its
// items, and the decrements land atomically or not at all. Sales and sale
// items are append-only; no update or delete path exists for them.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	SetStock(ctx context.Context, id string, qty int) error
	AddStock(ctx context.Context, id string, delta int) (int, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)

	ListQuickSaleItems(ctx context.Context, activeOnly bool) ([]domain.QuickSaleItem, error)
	CreateQuickSaleItem(ctx context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error)
	GetQuickSaleItem(ctx context.Context, id string) (*domain.QuickSaleItem, error)
	GetQuickSaleItemsByIDs(ctx context.Context, ids []string) (map[string]domain.QuickSaleItem, error)
	UpdateQuickSaleItem(ctx context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error)
	DeactivateQuickSaleItem(ctx context.Context, id string) error

	CommitSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem, decrements []domain.StockDecrement) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.SaleDetail, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
