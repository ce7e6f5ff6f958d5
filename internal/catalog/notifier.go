package catalog

import (
	"context"

	"github.com/foodshed/market-api/internal/events"
)

// ShopfrontNotifier invalidates cached shopfronts when an enterprise's
// rules or fees change, so the next storefront read reflects the change.
type ShopfrontNotifier struct {
	Svc *Service
}

// Notify implements events.Notifier.
func (n ShopfrontNotifier) Notify(ctx context.Context, event events.DomainEvent) error {
	if n.Svc == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicTagRulesChanged, events.TopicEnterpriseFeesChanged:
		n.Svc.InvalidateShopfront(ctx, event.AggregateID)
	}
	return nil
}
