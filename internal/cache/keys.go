package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyShopfront returns the cache key holding a distributor's assembled
// shopfront listing.
func KeyShopfront(distributorID uuid.UUID) string {
	return "catalog:shopfront:" + distributorID.String()
}

// ShopfrontInvalidator drops cached shopfront listings directly against
// Redis. Admin surfaces use it so a rule or fee change is visible on the
// next storefront read.
type ShopfrontInvalidator struct {
	R *redis.Client
}

// InvalidateShopfront removes the distributor's cached listing.
func (i ShopfrontInvalidator) InvalidateShopfront(ctx context.Context, distributorID uuid.UUID) error {
	if i.R == nil {
		return nil
	}
	return i.R.Del(ctx, KeyShopfront(distributorID)).Err()
}
