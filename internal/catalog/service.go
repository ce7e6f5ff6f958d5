package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/cache"
	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/obs"
	"github.com/foodshed/market-api/internal/tagrule"
)

// ErrNotFound indicates the product does not exist.
var ErrNotFound = errors.New("catalog: product not found")

// Store is the persistence surface the shopfront reads from.
type Store interface {
	ListOpenOrderCycles(ctx context.Context, distributorID uuid.UUID) ([]cycle.OrderCycle, error)
	ListProductsByVariants(ctx context.Context, variantIDs []uuid.UUID) ([]Product, error)
	ListProductsByDistribution(ctx context.Context, distributorID uuid.UUID) ([]Product, error)
	GetProductBySlug(ctx context.Context, slug string) (Product, error)
	ListTagRules(ctx context.Context, enterpriseID uuid.UUID, kind tagrule.Kind) ([]tagrule.Rule, error)
}

// Shopfront is what one shopper sees in one distributor's store: the
// purchasable products and when orders close.
type Shopfront struct {
	DistributorID uuid.UUID  `json:"distributorId"`
	Products      []Product  `json:"products"`
	OrdersCloseAt *time.Time `json:"ordersCloseAt,omitempty"`
}

// Service assembles distributor shopfronts. Products come from the open
// order cycles serving the distributor plus its direct product links, then
// the distributor's product tag rules decide per-shopper visibility.
type Service struct {
	Store Store
	Cache *Cache
	Now   func() time.Time
	Log   zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Shopfront lists the products the shopper can buy from the distributor.
// Results for shoppers without customer tags are cached; tagged shoppers see
// rule-dependent listings and always hit the store.
func (s *Service) Shopfront(ctx context.Context, distributorID uuid.UUID, customerTags []string) (Shopfront, error) {
	cacheable := len(customerTags) == 0
	key := shopfrontCacheKey(distributorID)
	if cacheable && s.Cache != nil {
		var cached Shopfront
		if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	front, err := s.buildShopfront(ctx, distributorID, customerTags)
	if err != nil {
		return Shopfront{}, err
	}
	if cacheable && s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, key, front); err != nil {
			s.Log.Warn().Err(err).Str("distributor_id", distributorID.String()).Msg("shopfront cache write failed")
		}
	}
	return front, nil
}

func (s *Service) buildShopfront(ctx context.Context, distributorID uuid.UUID, customerTags []string) (Shopfront, error) {
	cycles, err := s.Store.ListOpenOrderCycles(ctx, distributorID)
	if err != nil {
		return Shopfront{}, err
	}

	allowed := map[uuid.UUID]struct{}{}
	for _, oc := range cycles {
		for _, id := range oc.VariantsFor(distributorID) {
			allowed[id] = struct{}{}
		}
	}
	variantIDs := make([]uuid.UUID, 0, len(allowed))
	for id := range allowed {
		variantIDs = append(variantIDs, id)
	}

	cycleProducts, err := s.Store.ListProductsByVariants(ctx, variantIDs)
	if err != nil {
		return Shopfront{}, err
	}
	for i := range cycleProducts {
		cycleProducts[i] = cycleProducts[i].RestrictVariants(allowed)
	}
	directProducts, err := s.Store.ListProductsByDistribution(ctx, distributorID)
	if err != nil {
		return Shopfront{}, err
	}

	seen := map[uuid.UUID]struct{}{}
	products := make([]Product, 0, len(cycleProducts)+len(directProducts))
	for _, p := range append(cycleProducts, directProducts...) {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
	}

	rules, err := s.Store.ListTagRules(ctx, distributorID, tagrule.KindFilterProducts)
	if err != nil {
		return Shopfront{}, err
	}
	obs.CountTagRuleEvaluation(string(tagrule.KindFilterProducts))
	products, err = tagrule.Filter(rules, tagrule.KindFilterProducts, customerTags, products)
	if err != nil {
		return Shopfront{}, err
	}

	front := Shopfront{DistributorID: distributorID, Products: products}
	if closing, ok := cycle.EarliestClosingTimes(cycles, s.now())[distributorID]; ok {
		front.OrdersCloseAt = &closing
	}
	return front, nil
}

// ProductBySlug returns one product for the detail page.
func (s *Service) ProductBySlug(ctx context.Context, slug string) (Product, error) {
	return s.Store.GetProductBySlug(ctx, slug)
}

// InvalidateShopfront drops the distributor's cached shopfront. Called when
// its cycles, products or rules change.
func (s *Service) InvalidateShopfront(ctx context.Context, distributorID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, shopfrontCacheKey(distributorID)); err != nil {
		s.Log.Warn().Err(err).Str("distributor_id", distributorID.String()).Msg("shopfront cache invalidation failed")
	}
}

func shopfrontCacheKey(distributorID uuid.UUID) string {
	return cache.KeyShopfront(distributorID)
}
