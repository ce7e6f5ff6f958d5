package enterprise

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/obs"
	"github.com/foodshed/market-api/internal/tagrule"
)

// ErrNotFound indicates the enterprise does not exist.
var ErrNotFound = errors.New("enterprise: not found")

// Store is the persistence surface the storefront service reads from.
type Store interface {
	GetEnterprise(ctx context.Context, id uuid.UUID) (Enterprise, error)
	ListDistributors(ctx context.Context) ([]Enterprise, error)
	ListShippingMethods(ctx context.Context, distributorID uuid.UUID) ([]ShippingMethod, error)
	ListPaymentMethods(ctx context.Context, distributorID uuid.UUID, activeOnly bool) ([]PaymentMethod, error)
	ListOpenOrderCycles(ctx context.Context, distributorID uuid.UUID) ([]cycle.OrderCycle, error)
	ListTagRules(ctx context.Context, enterpriseID uuid.UUID, kind tagrule.Kind) ([]tagrule.Rule, error)
	GetCustomer(ctx context.Context, userID, enterpriseID uuid.UUID) (Customer, error)
}

// Service resolves what one shopper can see in one distributor's storefront.
// The distributor's tag rules are applied against the shopper's customer tags.
type Service struct {
	Store Store
	Log   zerolog.Logger
}

// CustomerTags returns the shopper's tags at the enterprise. Anonymous
// shoppers and shoppers without a customer record have none, which routes
// them to the enterprise's default rules.
func (s *Service) CustomerTags(ctx context.Context, userID *uuid.UUID, enterpriseID uuid.UUID) []string {
	if userID == nil {
		return nil
	}
	customer, err := s.Store.GetCustomer(ctx, *userID, enterpriseID)
	if err != nil {
		return nil
	}
	return customer.Tags
}

// Get loads one enterprise.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Enterprise, error) {
	return s.Store.GetEnterprise(ctx, id)
}

// Distributors lists the enterprises shoppers can order through.
func (s *Service) Distributors(ctx context.Context) ([]Enterprise, error) {
	return s.Store.ListDistributors(ctx)
}

// AvailableShippingMethods lists the distributor's shipping methods visible
// to the shopper after tag rules are applied.
func (s *Service) AvailableShippingMethods(ctx context.Context, distributorID uuid.UUID, customerTags []string) ([]ShippingMethod, error) {
	methods, err := s.Store.ListShippingMethods(ctx, distributorID)
	if err != nil {
		return nil, err
	}
	return filterCandidates(ctx, s, distributorID, tagrule.KindFilterShippingMethods, customerTags, methods)
}

// AvailablePaymentMethods lists the distributor's active payment methods
// visible to the shopper after tag rules are applied.
func (s *Service) AvailablePaymentMethods(ctx context.Context, distributorID uuid.UUID, customerTags []string) ([]PaymentMethod, error) {
	methods, err := s.Store.ListPaymentMethods(ctx, distributorID, true)
	if err != nil {
		return nil, err
	}
	return filterCandidates(ctx, s, distributorID, tagrule.KindFilterPaymentMethods, customerTags, methods)
}

// AvailableOrderCycles lists the distributor's open order cycles visible to
// the shopper after tag rules are applied, soonest closing first.
func (s *Service) AvailableOrderCycles(ctx context.Context, distributorID uuid.UUID, customerTags []string) ([]cycle.OrderCycle, error) {
	cycles, err := s.Store.ListOpenOrderCycles(ctx, distributorID)
	if err != nil {
		return nil, err
	}
	filtered, err := filterCandidates(ctx, s, distributorID, tagrule.KindFilterOrderCycles, customerTags, cycles)
	if err != nil {
		return nil, err
	}
	cycle.SortByClose(filtered)
	return filtered, nil
}

func filterCandidates[T tagrule.Candidate](ctx context.Context, s *Service, enterpriseID uuid.UUID, kind tagrule.Kind, customerTags []string, candidates []T) ([]T, error) {
	rules, err := s.Store.ListTagRules(ctx, enterpriseID, kind)
	if err != nil {
		return nil, err
	}
	obs.CountTagRuleEvaluation(string(kind))
	return tagrule.Filter(rules, kind, customerTags, candidates)
}
