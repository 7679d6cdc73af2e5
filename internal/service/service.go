package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lastkingz/backend/internal/cache"
	"lastkingz/backend/internal/domain"
	"lastkingz/backend/internal/receipt"
	"lastkingz/backend/internal/scanner"
	"lastkingz/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo            store.Repository
	productCache    cache.ProductCache
	printer         receipt.Printer
	storeName       string
	productCacheTTL time.Duration
}

func New(repo store.Repository, productCache cache.ProductCache, printer receipt.Printer, storeName string, productCacheTTL time.Duration) *Service {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	if storeName == "" {
		storeName = "Last Kingz Liquor"
	}
	if productCacheTTL <= 0 {
		productCacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:            repo,
		productCache:    productCache,
		printer:         printer,
		storeName:       storeName,
		productCacheTTL: productCacheTTL,
	}
}

func requireManager(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleManager {
		return fmt.Errorf("manager role required")
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireManager(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Name = strings.TrimSpace(req.Name)

	if !scanner.ValidateBarcode(req.Barcode) {
		return domain.Product{}, store.ErrInvalidInput
	}
	if req.Name == "" || req.PriceCents < 1 || req.Stock < 0 || req.LowStockThreshold < 0 {
		return domain.Product{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Barcode:           req.Barcode,
		Name:              req.Name,
		PriceCents:        req.PriceCents,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateBarcode) {
			return domain.Product{}, &DuplicateBarcodeError{Barcode: req.Barcode}
		}
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("barcode=%s,price=%d,stock=%d", created.Barcode, created.PriceCents, created.Stock))
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// LookupBarcode is the scan path: cache first, then the store. A cache error
// is logged and treated as a miss so the register keeps working without redis.
func (s *Service) LookupBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if !scanner.ValidateBarcode(barcode) {
		return domain.Product{}, store.ErrInvalidInput
	}

	if cached, ok, err := s.productCache.Get(ctx, barcode); err != nil {
		log.Printf("[service] WARN: product cache get barcode=%s: %v", barcode, err)
	} else if ok {
		return *cached, nil
	}

	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.productCache.Set(ctx, barcode, product, s.productCacheTTL); err != nil {
		log.Printf("[service] WARN: product cache set barcode=%s: %v", barcode, err)
	}
	return *product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireManager(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateProduct(ctx, saved.Barcode)
	s.logAudit(ctx, "product_update", "product", saved.ID, fmt.Sprintf("price=%d,threshold=%d", saved.PriceCents, saved.LowStockThreshold))
	return *saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireManager(ctx); err != nil {
		return err
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}

	s.invalidateProduct(ctx, existing.Barcode)
	s.logAudit(ctx, "product_delete", "product", id, "barcode="+existing.Barcode)
	return nil
}

// AdjustStock applies a manual stock correction. Set replaces the level; Add
// is relative and floors at zero so a miscount cannot drive stock negative.
func (s *Service) AdjustStock(ctx context.Context, id string, req domain.StockAdjustRequest) (domain.Product, error) {
	if err := requireManager(ctx); err != nil {
		return domain.Product{}, err
	}
	if (req.Set == nil) == (req.Add == nil) {
		return domain.Product{}, store.ErrInvalidInput
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	next := existing.Stock
	switch {
	case req.Set != nil:
		if *req.Set < 0 {
			return domain.Product{}, store.ErrInvalidInput
		}
		next = *req.Set
		if err := s.repo.SetStock(ctx, id, next); err != nil {
			return domain.Product{}, err
		}
	case req.Add != nil:
		// Relative adjustments go through the store in one operation so a
		// concurrent sale commit's decrement is never overwritten.
		level, err := s.repo.AddStock(ctx, id, *req.Add)
		if err != nil {
			return domain.Product{}, err
		}
		next = level
	}

	s.invalidateProduct(ctx, existing.Barcode)
	s.logAudit(ctx, "stock_adjust", "product", id, fmt.Sprintf("from=%d,to=%d", existing.Stock, next))

	updated := *existing
	updated.Stock = next
	return updated, nil
}

func (s *Service) invalidateProduct(ctx context.Context, barcode string) {
	if err := s.productCache.Invalidate(ctx, barcode); err != nil {
		log.Printf("[service] WARN: product cache invalidate barcode=%s: %v", barcode, err)
	}
}

func (s *Service) ListQuickSaleItems(ctx context.Context, includeInactive bool) ([]domain.QuickSaleItem, error) {
	if includeInactive {
		if err := requireManager(ctx); err != nil {
			return nil, err
		}
	}
	return s.repo.ListQuickSaleItems(ctx, !includeInactive)
}

func (s *Service) CreateQuickSaleItem(ctx context.Context, req domain.QuickSaleItemCreateRequest) (domain.QuickSaleItem, error) {
	if err := requireManager(ctx); err != nil {
		return domain.QuickSaleItem{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents < 1 {
		return domain.QuickSaleItem{}, store.ErrInvalidInput
	}

	created, err := s.repo.CreateQuickSaleItem(ctx, domain.QuickSaleItem{
		Name:         req.Name,
		PriceCents:   req.PriceCents,
		Category:     strings.TrimSpace(req.Category),
		Icon:         strings.TrimSpace(req.Icon),
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		return domain.QuickSaleItem{}, err
	}

	s.logAudit(ctx, "quick_sale_item_create", "quick_sale_item", created.ID, fmt.Sprintf("name=%s,price=%d", created.Name, created.PriceCents))
	return *created, nil
}

func (s *Service) UpdateQuickSaleItem(ctx context.Context, id string, req domain.QuickSaleItemUpdateRequest) (domain.QuickSaleItem, error) {
	if err := requireManager(ctx); err != nil {
		return domain.QuickSaleItem{}, err
	}

	existing, err := s.repo.GetQuickSaleItem(ctx, id)
	if err != nil {
		return domain.QuickSaleItem{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.QuickSaleItem{}, store.ErrInvalidInput
		}
		updated.Name = name
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return domain.QuickSaleItem{}, store.ErrInvalidInput
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Icon != nil {
		updated.Icon = strings.TrimSpace(*req.Icon)
	}
	if req.DisplayOrder != nil {
		updated.DisplayOrder = *req.DisplayOrder
	}

	saved, err := s.repo.UpdateQuickSaleItem(ctx, updated)
	if err != nil {
		return domain.QuickSaleItem{}, err
	}

	s.logAudit(ctx, "quick_sale_item_update", "quick_sale_item", saved.ID, fmt.Sprintf("name=%s,price=%d", saved.Name, saved.PriceCents))
	return *saved, nil
}

// DeactivateQuickSaleItem is a soft delete: the row survives so historical
// sale lines keep a valid reference.
func (s *Service) DeactivateQuickSaleItem(ctx context.Context, id string) error {
	if err := requireManager(ctx); err != nil {
		return err
	}
	if err := s.repo.DeactivateQuickSaleItem(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "quick_sale_item_deactivate", "quick_sale_item", id, "")
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	log.Printf("[audit] actor=%s role=%s action=%s entity=%s/%s detail=%s", actor.Username, actor.Role, action, entityType, entityID, detail)
}
