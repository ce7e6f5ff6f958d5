package enterprise_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/enterprise"
	"github.com/foodshed/market-api/internal/tagrule"
)

type fakeStorefrontStore struct {
	enterprises map[uuid.UUID]enterprise.Enterprise
	shipping    []enterprise.ShippingMethod
	payment     []enterprise.PaymentMethod
	cycles      []cycle.OrderCycle
	rules       map[tagrule.Kind][]tagrule.Rule
	customers   map[uuid.UUID]enterprise.Customer
}

func (f *fakeStorefrontStore) GetEnterprise(_ context.Context, id uuid.UUID) (enterprise.Enterprise, error) {
	e, ok := f.enterprises[id]
	if !ok {
		return enterprise.Enterprise{}, enterprise.ErrNotFound
	}
	return e, nil
}

func (f *fakeStorefrontStore) ListDistributors(context.Context) ([]enterprise.Enterprise, error) {
	var out []enterprise.Enterprise
	for _, e := range f.enterprises {
		if e.IsDistributor {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStorefrontStore) ListShippingMethods(context.Context, uuid.UUID) ([]enterprise.ShippingMethod, error) {
	return f.shipping, nil
}

func (f *fakeStorefrontStore) ListPaymentMethods(_ context.Context, _ uuid.UUID, activeOnly bool) ([]enterprise.PaymentMethod, error) {
	if !activeOnly {
		return f.payment, nil
	}
	var out []enterprise.PaymentMethod
	for _, m := range f.payment {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStorefrontStore) ListOpenOrderCycles(context.Context, uuid.UUID) ([]cycle.OrderCycle, error) {
	return f.cycles, nil
}

func (f *fakeStorefrontStore) ListTagRules(_ context.Context, _ uuid.UUID, kind tagrule.Kind) ([]tagrule.Rule, error) {
	return f.rules[kind], nil
}

func (f *fakeStorefrontStore) GetCustomer(_ context.Context, userID, _ uuid.UUID) (enterprise.Customer, error) {
	c, ok := f.customers[userID]
	if !ok {
		return enterprise.Customer{}, enterprise.ErrNotFound
	}
	return c, nil
}

// storefront wires a hub whose local-delivery shipping method is hidden by
// default and revealed to shoppers tagged "local".
func storefront(hub uuid.UUID) *fakeStorefrontStore {
	return &fakeStorefrontStore{
		enterprises: map[uuid.UUID]enterprise.Enterprise{
			hub: {ID: hub, Name: "River Hub", IsDistributor: true},
		},
		shipping: []enterprise.ShippingMethod{
			{ID: uuid.New(), EnterpriseID: hub, Name: "Pickup"},
			{ID: uuid.New(), EnterpriseID: hub, Name: "Local delivery", Tags: []string{"local-delivery"}},
		},
		payment: []enterprise.PaymentMethod{
			{ID: uuid.New(), EnterpriseID: hub, Name: "Cash", Active: true},
			{ID: uuid.New(), EnterpriseID: hub, Name: "Legacy gateway", Active: false},
		},
		rules: map[tagrule.Kind][]tagrule.Rule{
			tagrule.KindFilterShippingMethods: {
				{
					ID:                uuid.New(),
					EnterpriseID:      hub,
					Kind:              tagrule.KindFilterShippingMethods,
					IsDefault:         true,
					PreferredTags:     []string{"local-delivery"},
					MatchedVisibility: tagrule.VisibilityHidden,
				},
				{
					ID:                uuid.New(),
					EnterpriseID:      hub,
					Kind:              tagrule.KindFilterShippingMethods,
					CustomerTags:      []string{"local"},
					PreferredTags:     []string{"local-delivery"},
					MatchedVisibility: tagrule.VisibilityVisible,
				},
			},
		},
		customers: map[uuid.UUID]enterprise.Customer{},
	}
}

func TestShippingMethodsHiddenByDefaultRule(t *testing.T) {
	hub := uuid.New()
	svc := &enterprise.Service{Store: storefront(hub), Log: zerolog.Nop()}

	methods, err := svc.AvailableShippingMethods(context.Background(), hub, nil)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	require.Equal(t, "Pickup", methods[0].Name)
}

func TestShippingMethodsVisibleToTaggedCustomer(t *testing.T) {
	hub := uuid.New()
	svc := &enterprise.Service{Store: storefront(hub), Log: zerolog.Nop()}

	methods, err := svc.AvailableShippingMethods(context.Background(), hub, []string{"local"})
	require.NoError(t, err)
	require.Len(t, methods, 2)
}

func TestPaymentMethodsOnlyActive(t *testing.T) {
	hub := uuid.New()
	svc := &enterprise.Service{Store: storefront(hub), Log: zerolog.Nop()}

	methods, err := svc.AvailablePaymentMethods(context.Background(), hub, nil)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	require.Equal(t, "Cash", methods[0].Name)
}

func TestOrderCyclesSortedByClose(t *testing.T) {
	hub := uuid.New()
	fs := storefront(hub)
	now := time.Now()
	late := cycle.OrderCycle{ID: uuid.New(), OrdersOpenAt: now.Add(-time.Hour), OrdersCloseAt: now.Add(48 * time.Hour)}
	soon := cycle.OrderCycle{ID: uuid.New(), OrdersOpenAt: now.Add(-time.Hour), OrdersCloseAt: now.Add(2 * time.Hour)}
	fs.cycles = []cycle.OrderCycle{late, soon}
	svc := &enterprise.Service{Store: fs, Log: zerolog.Nop()}

	cycles, err := svc.AvailableOrderCycles(context.Background(), hub, nil)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	require.Equal(t, soon.ID, cycles[0].ID)
}

func TestCustomerTags(t *testing.T) {
	hub := uuid.New()
	fs := storefront(hub)
	userID := uuid.New()
	fs.customers[userID] = enterprise.Customer{ID: uuid.New(), UserID: userID, EnterpriseID: hub, Tags: []string{"member"}}
	svc := &enterprise.Service{Store: fs, Log: zerolog.Nop()}

	require.Nil(t, svc.CustomerTags(context.Background(), nil, hub))
	require.Equal(t, []string{"member"}, svc.CustomerTags(context.Background(), &userID, hub))

	unknown := uuid.New()
	require.Nil(t, svc.CustomerTags(context.Background(), &unknown, hub))
}
