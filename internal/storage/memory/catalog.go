package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/domain/coupon"
	"github.com/xenking/kart-orders/internal/domain/product"
)

var (
	_ product.Repository = (*ProductStore)(nil)
	_ coupon.Repository  = (*CouponStore)(nil)
	_ auth.Repository    = (*APIKeyStore)(nil)
)

// ProductStore is a fixed product catalog.
type ProductStore struct {
	products []product.Product
	byID     map[string]int
}

// NewProductStore returns a store over products, listed by id.
func NewProductStore(products []product.Product) *ProductStore {
	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b product.Product) int { return strings.Compare(a.ID, b.ID) })
	byID := make(map[string]int, len(sorted))
	for i, p := range sorted {
		byID[p.ID] = i
	}
	return &ProductStore{products: sorted, byID: byID}
}

// List returns all products ordered by id.
func (s *ProductStore) List(context.Context) ([]product.Product, error) {
	return slices.Clone(s.products), nil
}

// GetByID returns a single product.
func (s *ProductStore) GetByID(_ context.Context, id string) (*product.Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := s.products[i]
	return &p, nil
}

// GetByIDs returns the products that exist among ids.
func (s *ProductStore) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			out = append(out, s.products[i])
		}
	}
	return out, nil
}

// CouponStore holds coupons keyed by normalized code.
type CouponStore struct {
	mu      sync.RWMutex
	coupons map[string]coupon.Coupon
}

// NewCouponStore returns a store seeded with coupons.
func NewCouponStore(coupons ...coupon.Coupon) *CouponStore {
	s := &CouponStore{coupons: make(map[string]coupon.Coupon, len(coupons))}
	for _, c := range coupons {
		s.coupons[c.Code] = c
	}
	return s
}

// Upsert inserts or replaces a coupon.
func (s *CouponStore) Upsert(_ context.Context, c coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.Code] = c
	return nil
}

// FindByCode returns the coupon with the normalized code.
func (s *CouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

// ListCodes calls fn for every stored code.
func (s *CouponStore) ListCodes(_ context.Context, fn func(code string) error) error {
	s.mu.RLock()
	codes := make([]string, 0, len(s.coupons))
	for code := range s.coupons {
		codes = append(codes, code)
	}
	s.mu.RUnlock()

	slices.Sort(codes)
	for _, code := range codes {
		if err := fn(code); err != nil {
			return err
		}
	}
	return nil
}

// APIKeyStore holds operator API keys keyed by hash.
type APIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]auth.APIKeyInfo
}

// NewAPIKeyStore returns an empty APIKeyStore.
func NewAPIKeyStore() *APIKeyStore {
	return &APIKeyStore{keys: make(map[string]auth.APIKeyInfo)}
}

// Add registers a key.
func (s *APIKeyStore) Add(info auth.APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// FindByHash returns the key with the given hash.
func (s *APIKeyStore) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.keys[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &info, nil
}
