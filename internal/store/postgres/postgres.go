package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/store"
	"lastkingz/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the tables on first start so a fresh database is usable
// without a separate migration step.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			barcode TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0,
			low_stock_threshold INTEGER NOT NULL DEFAULT 5,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS quick_sale_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			display_order INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id TEXT PRIMARY KEY,
			total_cents BIGINT NOT NULL,
			cash_received_cents BIGINT NOT NULL,
			change_cents BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			cashier_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id BIGSERIAL PRIMARY KEY,
			sale_id TEXT NOT NULL REFERENCES sales(id),
			product_id TEXT,
			barcode TEXT NOT NULL,
			name TEXT NOT NULL,
			unit_price_cents BIGINT NOT NULL,
			qty INTEGER NOT NULL,
			subtotal_cents BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS app_users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items (sale_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, name, price_cents, stock, low_stock_threshold, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Barcode == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if product.Stock < 0 || product.LowStockThreshold < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New(xid.Product)
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, barcode, name, price_cents, stock, low_stock_threshold, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, product.ID, product.Barcode, product.Name, product.PriceCents, product.Stock, product.LowStockThreshold, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateBarcode
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProduct(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return s.getProduct(ctx, "barcode", barcode)
}

func (s *Store) getProduct(ctx context.Context, column string, value string) (*domain.Product, error) {
	if column != "id" && column != "barcode" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	var p domain.Product
	query := fmt.Sprintf(`
		SELECT id, barcode, name, price_cents, stock, low_stock_threshold, created_at
		FROM products
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(&p.ID, &p.Barcode, &p.Name, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, name, price_cents, stock, low_stock_threshold, created_at
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 || product.LowStockThreshold < 0 {
		return nil, store.ErrInvalidInput
	}

	// Barcode and stock are deliberately not part of the update set.
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_cents = $3, low_stock_threshold = $4, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.PriceCents, product.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetProductByID(ctx, product.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetStock(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = $2, updated_at = now()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AddStock applies a relative adjustment in a single UPDATE, flooring at
// zero, so a concurrent sale commit's decrement cannot be overwritten by a
// stale read.
func (s *Store) AddStock(ctx context.Context, id string, delta int) (int, error) {
	var newStock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(stock + $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, id, delta).Scan(&newStock)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return newStock, nil
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, name, price_cents, stock, low_stock_threshold, created_at
		FROM products
		WHERE stock <= low_stock_threshold
		ORDER BY stock ASC, name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.PriceCents, &p.Stock, &p.LowStockThreshold, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListQuickSaleItems(ctx context.Context, activeOnly bool) ([]domain.QuickSaleItem, error) {
	query := `
		SELECT id, name, price_cents, category, icon, display_order, is_active
		FROM quick_sale_items
	`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY display_order ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.QuickSaleItem, 0, 16)
	for rows.Next() {
		var item domain.QuickSaleItem
		if err := rows.Scan(&item.ID, &item.Name, &item.PriceCents, &item.Category, &item.Icon, &item.DisplayOrder, &item.Active); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateQuickSaleItem(ctx context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error) {
	if strings.TrimSpace(item.Name) == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New(xid.QuickSale)
	}
	item.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quick_sale_items (id, name, price_cents, category, icon, display_order, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, item.ID, item.Name, item.PriceCents, item.Category, item.Icon, item.DisplayOrder, item.Active)
	if err != nil {
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) GetQuickSaleItem(ctx context.Context, id string) (*domain.QuickSaleItem, error) {
	var item domain.QuickSaleItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents, category, icon, display_order, is_active
		FROM quick_sale_items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.PriceCents, &item.Category, &item.Icon, &item.DisplayOrder, &item.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetQuickSaleItemsByIDs(ctx context.Context, ids []string) (map[string]domain.QuickSaleItem, error) {
	result := make(map[string]domain.QuickSaleItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_cents, category, icon, display_order, is_active
		FROM quick_sale_items
		WHERE is_active = true AND id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.QuickSaleItem
		if err := rows.Scan(&item.ID, &item.Name, &item.PriceCents, &item.Category, &item.Icon, &item.DisplayOrder, &item.Active); err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateQuickSaleItem(ctx context.Context, item domain.QuickSaleItem) (*domain.QuickSaleItem, error) {
	if item.ID == "" || strings.TrimSpace(item.Name) == "" || item.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE quick_sale_items
		SET name = $2, price_cents = $3, category = $4, icon = $5, display_order = $6
		WHERE id = $1
	`, item.ID, item.Name, item.PriceCents, item.Category, item.Icon, item.DisplayOrder)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	return s.GetQuickSaleItem(ctx, item.ID)
}

func (s *Store) DeactivateQuickSaleItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quick_sale_items
		SET is_active = false
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CommitSale writes the sale, its items, and every stock decrement in one
// transaction. Each decrement is conditional on remaining stock
// (stock = stock - qty WHERE stock >= qty): a concurrent sale that already
// consumed the units makes the update match zero rows and the whole
// transaction rolls back with ErrStockConflict.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, items []domain.SaleItem, decrements []domain.StockDecrement) (*domain.Sale, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New(xid.Sale)
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	for _, dec := range decrements {
		if dec.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		res, err := pgTx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = now()
			WHERE id = $1 AND stock >= $2
		`, dec.ProductID, dec.Qty)
		if err != nil {
			if isSerializationFailure(err) {
				return nil, fmt.Errorf("product %s: %w", dec.ProductID, store.ErrStockConflict)
			}
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, fmt.Errorf("product %s: %w", dec.ProductID, store.ErrStockConflict)
		}
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, total_cents, cash_received_cents, change_cents, payment_method, cashier_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sale.ID, sale.TotalCents, sale.CashReceivedCents, sale.ChangeCents, sale.PaymentMethod, nullIfEmpty(sale.CashierID), sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, product_id, barcode, name, unit_price_cents, qty, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, nullIfEmpty(item.ProductID), item.Barcode, item.Name, item.UnitPriceCents, item.Qty, item.SubtotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		if isSerializationFailure(err) {
			return nil, fmt.Errorf("sale %s: %w", sale.ID, store.ErrStockConflict)
		}
		return nil, err
	}

	saved := sale
	return &saved, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.SaleDetail, error) {
	var sale domain.Sale
	var cashierID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cents, cash_received_cents, change_cents, payment_method, cashier_id, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalCents, &sale.CashReceivedCents, &sale.ChangeCents, &sale.PaymentMethod, &cashierID, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if cashierID.Valid {
		sale.CashierID = cashierID.String
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, COALESCE(product_id,''), barcode, name, unit_price_cents, qty, subtotal_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.SaleID, &item.ProductID, &item.Barcode, &item.Name, &item.UnitPriceCents, &item.Qty, &item.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.SaleDetail{Sale: sale, Items: items}, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_cents, cash_received_cents, change_cents, payment_method, cashier_id, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var cashierID sql.NullString
		if err := rows.Scan(&sale.ID, &sale.TotalCents, &sale.CashReceivedCents, &sale.ChangeCents, &sale.PaymentMethod, &cashierID, &sale.CreatedAt); err != nil {
			return nil, err
		}
		if cashierID.Valid {
			sale.CashierID = cashierID.String
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SalesSummary(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total_cents), 0),
			COALESCE(SUM(cash_received_cents), 0),
			COALESCE(SUM(change_cents), 0)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&summary.SaleCount, &summary.TotalRevenueCents, &summary.TotalCashCents, &summary.TotalChangeCents)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	return summary, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
