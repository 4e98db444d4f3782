package coupon

import (
	"context"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

const (
	// defaultCatalogCapacity sizes the prefilter when the catalog is empty.
	defaultCatalogCapacity = 1024
	catalogFPR             = 0.001
)

// Catalog resolves coupon codes leniently: unknown, malformed or missing
// codes resolve to "no coupon" instead of an error. A bloom filter over all
// known codes lets most unknown codes skip the repository round trip.
type Catalog struct {
	repo   Repository
	filter atomic.Pointer[bloom.BloomFilter]
}

// NewCatalog wraps a Repository. Until Warm succeeds every lookup goes to
// the repository.
func NewCatalog(repo Repository) *Catalog {
	return &Catalog{repo: repo}
}

// Warm builds the prefilter from the full list of codes. The catalog is
// static, so this is done once at startup.
func (c *Catalog) Warm(ctx context.Context) (int, error) {
	var codes []string
	if err := c.repo.ListCodes(ctx, func(code string) error {
		codes = append(codes, code)
		return nil
	}); err != nil {
		return 0, errors.Wrap(err, "list coupon codes")
	}

	capacity := uint(len(codes))
	if capacity < defaultCatalogCapacity {
		capacity = defaultCatalogCapacity
	}
	filter := bloom.NewWithEstimates(capacity, catalogFPR)
	for _, code := range codes {
		filter.AddString(code)
	}
	c.filter.Store(filter)
	return len(codes), nil
}

// Lookup returns the coupon for code. ok is false when the code is empty,
// malformed or unknown; err is only set for repository failures.
func (c *Catalog) Lookup(ctx context.Context, code string) (_ *Coupon, ok bool, _ error) {
	if code == "" {
		return nil, false, nil
	}
	normalized, err := NormalizeCode(code)
	if err != nil {
		return nil, false, nil
	}
	if f := c.filter.Load(); f != nil && !f.TestString(normalized) {
		return nil, false, nil
	}

	rule, err := c.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "lookup coupon")
	}
	return rule, true, nil
}
