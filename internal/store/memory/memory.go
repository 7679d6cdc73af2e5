package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/store"
	"lastkingz/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	productsByID    map[string]domain.Product
	productIDByCode map[string]string
	quickItemsByID  map[string]domain.QuickSaleItem
	salesByID       map[string]domain.Sale
	saleItemsBySale map[string][]domain.SaleItem
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"manager", managerPwd, domain.RoleManager},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-jd750", Barcode: "082184090563", Name: "Jack Daniels 750ml", PriceCents: 2499, Stock: 24, LowStockThreshold: 6},
		{ID: "prod-bud12", Barcode: "018200530616", Name: "Budweiser 12pk", PriceCents: 1499, Stock: 40, LowStockThreshold: 10},
		{ID: "prod-tito750", Barcode: "619947000020", Name: "Titos Vodka 750ml", PriceCents: 2199, Stock: 18, LowStockThreshold: 5},
		{ID: "prod-corona6", Barcode: "080660956435", Name: "Corona Extra 6pk", PriceCents: 1099, Stock: 30, LowStockThreshold: 8},
		{ID: "prod-capt750", Barcode: "087000007962", Name: "Captain Morgan 750ml", PriceCents: 1899, Stock: 15, LowStockThreshold: 5},
		{ID: "prod-jose750", Barcode: "811538013161", Name: "Jose Cuervo Gold 750ml", PriceCents: 1999, Stock: 12, LowStockThreshold: 4},
		{ID: "prod-hen750", Barcode: "088110110222", Name: "Hennessy VS 750ml", PriceCents: 4299, Stock: 10, LowStockThreshold: 3},
		{ID: "prod-wine-cab", Barcode: "086003252400", Name: "Cabernet Sauvignon 750ml", PriceCents: 1299, Stock: 20, LowStockThreshold: 6},
		{ID: "prod-seltzer", Barcode: "635985250132", Name: "White Claw Variety 12pk", PriceCents: 1699, Stock: 25, LowStockThreshold: 8},
		{ID: "prod-marlboro", Barcode: "028200003846", Name: "Marlboro Red", PriceCents: 599, Stock: 60, LowStockThreshold: 20},
	}

	quickItems := []domain.QuickSaleItem{
		{ID: "qs-icebag", Name: "Ice Bag", PriceCents: 299, Category: "misc", Icon: "ice", DisplayOrder: 1, Active: true},
		{ID: "qs-cups", Name: "Party Cups", PriceCents: 499, Category: "misc", Icon: "cups", DisplayOrder: 2, Active: true},
		{ID: "qs-lighter", Name: "Lighter", PriceCents: 199, Category: "misc", Icon: "flame", DisplayOrder: 3, Active: true},
		{ID: "qs-bottleopen", Name: "Bottle Opener", PriceCents: 399, Category: "misc", Icon: "opener", DisplayOrder: 4, Active: true},
	}

	productMap := make(map[string]domain.Product, len(products))
	codeIndex := make(map[string]string, len(products))
	for _, p := range products {
		p.CreatedAt = now
		productMap[p.ID] = p
		codeIndex[p.Barcode] = p.ID
	}
	quickMap := make(map[string]domain.QuickSaleItem, len(quickItems))
	for _, q := range quickItems {
		quickMap[q.ID] = q
	}

	return &Store{
		productsByID:    productMap,
		productIDByCode: codeIndex,
		quickItemsByID:  quickMap,
		salesByID:       make(map[string]domain.Sale),
		saleItemsBySale: make(map[string][]domain.SaleItem),
		usersByUsername: seedUsers(),
	}
}

// NewEmpty returns a store with no catalog or sales, only seeded users.
// Used by tests that need full control over the catalog.
func NewEmpty() *Store {
	s := NewSeeded()
	s.productsByID = make(map[string]domain.Product)
	s.productIDByCode = make(map[string]string)
	s.quickItemsByID = make(map[string]domain.QuickSaleItem)
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Barcode == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.Stock < 0 || product.LowStockThreshold < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productIDByCode[product.Barcode]; exists {
		return nil, store.ErrDuplicateBarcode
	}
	if product.ID == "" {
		product.ID = xid.New(xid.Product)
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	s.productsByID[product.ID] = product
	s.productIDByCode[product.Barcode] = product.ID
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.productIDByCode[barcode]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := s.productsByID[id]
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.productsByID[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 || product.LowStockThreshold < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.productsByID[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	// Barcode and stock are not editable through UpdateProduct: barcode is the
	// product's identity on the floor, stock changes go through SetStock or sale
	// commits.
	product.Barcode = existing.Barcode
	product.Stock = existing.Stock
	product.CreatedAt = existing.CreatedAt

	s.productsByID[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.productsByID, id)
	delete(s.productIDByCode, product.Barcode)
	return nil
}

func (s *Store) SetStock(_ context.Context, id string, qty int) error {
	if qty < 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	product.Stock = qty
	s.productsByID[id] = product
	return nil
}

// AddStock applies a relative adjustment under the store lock, flooring at
// zero, so it cannot lose a decrement from a concurrent sale commit.
func (s *Store) AddStock(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[id]
	if !exists {
		return 0, store.ErrNotFound
	}
	product.Stock += delta
	if product.Stock < 0 {
		product.Stock = 0
	}
	s.productsByID[id] = product
	return product.Stock, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, 8)
	for _, p := range s.productsByID {
		if p.Stock <= p.LowStockThreshold {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b domain.Product) int {
		if a.Stock != b.Stock {
			if a.Stock < b.Stock {
				return -1
			}
			return 1
		}
		return cmpString(a.Name, b.Name)
	})
	return result, nil
}

func (s *Store) ListQuickSaleItems(_ context.Context, activeOnly bool) ([]domain.QuickSaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.QuickSaleItem, 0, len(s.quickItemsByID))
	for _, item := range s.quickItemsByID {
		if activeOnly && !item.Active {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.QuickSaleItem) int {
		if a.DisplayOrder != b.DisplayOrder {
			if a.DisplayOrder < b.DisplayOrder {
				return -1
			}
			return 1
		}
		return cmpString(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) CreateQuickSaleItem(_ context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error) {
	if strings.TrimSpace(item.Name) == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = xid.New(xid.QuickSale)
	}
	item.Active = true
	s.quickItemsByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetQuickSaleItem(_ context.Context, id string) (*domain.QuickSaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.quickItemsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) GetQuickSaleItemsByIDs(_ context.Context, ids []string) (map[string]domain.QuickSaleItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.QuickSaleItem, len(ids))
	for _, id := range ids {
		if item, ok := s.quickItemsByID[id]; ok && item.Active {
			result[id] = item
		}
	}
	return result, nil
}

func (s *Store) UpdateQuickSaleItem(_ context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error) {
	if item.ID == "" || strings.TrimSpace(item.Name) == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.quickItemsByID[item.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	item.Active = existing.Active
	s.quickItemsByID[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeactivateQuickSaleItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.quickItemsByID[id]
	if !exists {
		return store.ErrNotFound
	}
	item.Active = false
	s.quickItemsByID[id] = item
	return nil
}

// CommitSale applies the checkout atomically under a single lock: every
// decrement is verified against current stock before anything is written, so
// a conflicting concurrent sale leaves the store untouched.
func (s *Store) CommitSale(_ context.Context, sale domain.Sale, items []domain.SaleItem, decrements []domain.StockDecrement) (*domain.Sale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dec := range decrements {
		if dec.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		product, exists := s.productsByID[dec.ProductID]
		if !exists {
			return nil, fmt.Errorf("product %s: %w", dec.ProductID, store.ErrNotFound)
		}
		if product.Stock < dec.Qty {
			return nil, fmt.Errorf("product %s: %w", dec.ProductID, store.ErrStockConflict)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New(xid.Sale)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	for _, dec := range decrements {
		product := s.productsByID[dec.ProductID]
		product.Stock -= dec.Qty
		s.productsByID[dec.ProductID] = product
	}

	stored := make([]domain.SaleItem, len(items))
	copy(stored, items)
	for i := range stored {
		stored[i].SaleID = sale.ID
	}

	s.salesByID[sale.ID] = sale
	s.saleItemsBySale[sale.ID] = stored

	saved := sale
	return &saved, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.SaleDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	items := s.saleItemsBySale[id]
	copied := make([]domain.SaleItem, len(items))
	copy(copied, items)
	return &domain.SaleDetail{Sale: sale, Items: copied}, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, sale)
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) SalesSummary(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{}
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.SaleCount++
		summary.TotalRevenueCents += sale.TotalCents
		summary.TotalCashCents += sale.CashReceivedCents
		summary.TotalChangeCents += sale.ChangeCents
	}
	return summary, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
