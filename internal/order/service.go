package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foodshed/market-api/internal/catalog"
	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/enterprise"
	"github.com/foodshed/market-api/internal/events"
	"github.com/foodshed/market-api/internal/fee"
)

// Order states. Only cart orders are editable; completed orders keep their
// recomputed charges until canceled.
const (
	StateCart     = "cart"
	StateComplete = "complete"
	StateCanceled = "canceled"
)

var (
	ErrNotFound             = errors.New("order: not found")
	ErrNotEditable          = errors.New("order: not editable in its current state")
	ErrInvalidTransition    = errors.New("order: state transition not allowed")
	ErrDistributionRequired = errors.New("order: distributor is required")
	ErrVariantUnavailable   = errors.New("order: variant not available through the order's distribution")
	ErrInvalidQuantity      = errors.New("order: quantity must be positive")
	ErrNotDistributor       = errors.New("order: enterprise is not a distributor")
	ErrCycleClosed          = errors.New("order: order cycle is not open")
	ErrCycleMismatch        = errors.New("order: order cycle does not serve the distributor")
)

// Store is the persistence surface the order service runs against.
type Store interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (Order, error)
	CreateOrder(ctx context.Context, o Order) error
	UpdateOrderDistribution(ctx context.Context, orderID uuid.UUID, distributorID, orderCycleID *uuid.UUID) error
	UpdateOrderState(ctx context.Context, orderID uuid.UUID, state string) error
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error)
	UpsertLineItem(ctx context.Context, li LineItem) error
	DeleteLineItem(ctx context.Context, orderID, lineItemID uuid.UUID) error
	DeleteAllLineItems(ctx context.Context, orderID uuid.UUID) error
	NextOrderNumber(ctx context.Context) (string, error)

	GetVariant(ctx context.Context, id uuid.UUID) (catalog.Variant, error)
	GetEnterprise(ctx context.Context, id uuid.UUID) (enterprise.Enterprise, error)
	GetOrderCycle(ctx context.Context, id uuid.UUID) (cycle.OrderCycle, error)
	ProductDistributionsFor(ctx context.Context, distributorID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]fee.ProductDistribution, error)
}

// Emitter publishes order change events. Fan-out failures are logged, not
// surfaced: the write that triggered the event has already committed.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.DomainEvent, error)
}

// Service owns the order lifecycle: creation, distribution changes, line
// item edits and state transitions. Every mutation that can change the
// order's charges emits an event so the recompute picks it up.
type Service struct {
	Store    Store
	Events   Emitter
	Currency string
	Now      func() time.Time
	Log      zerolog.Logger
}

// CreateParams describes a new order shell.
type CreateParams struct {
	CustomerID    *uuid.UUID
	DistributorID *uuid.UUID
	OrderCycleID  *uuid.UUID
}

// Create opens a new cart order, validating the requested distribution.
func (s *Service) Create(ctx context.Context, p CreateParams) (Order, error) {
	if err := s.validateDistribution(ctx, p.DistributorID, p.OrderCycleID); err != nil {
		return Order{}, err
	}
	number, err := s.Store.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("allocate order number: %w", err)
	}
	o := Order{
		ID:            uuid.New(),
		Number:        number,
		CustomerID:    p.CustomerID,
		DistributorID: p.DistributorID,
		OrderCycleID:  p.OrderCycleID,
		State:         StateCart,
		Currency:      s.Currency,
	}
	if err := s.Store.CreateOrder(ctx, o); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderCreated, o.ID, map[string]any{"number": o.Number})
	return s.Store.GetOrder(ctx, o.ID)
}

// Get loads an order.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (Order, error) {
	return s.Store.GetOrder(ctx, orderID)
}

// ListByCustomer returns the customer's orders, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Order, error) {
	return s.Store.ListOrdersByCustomer(ctx, customerID, limit, offset)
}

// SetDistribution moves the order to a new distributor and order cycle.
// Changing the order cycle always empties the order: cycle prices and fees
// are not comparable, so nothing in the cart may carry over. A
// distributor-only change empties it only when the new distributor cannot
// supply the contents.
func (s *Service) SetDistribution(ctx context.Context, orderID uuid.UUID, distributorID, orderCycleID *uuid.UUID) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != StateCart {
		return Order{}, ErrNotEditable
	}
	if err := s.validateDistribution(ctx, distributorID, orderCycleID); err != nil {
		return Order{}, err
	}

	if len(o.LineItems) > 0 {
		empty := !sameID(o.OrderCycleID, orderCycleID)
		if !empty {
			ok, err := s.contentsAvailable(ctx, o.LineItems, distributorID, orderCycleID)
			if err != nil {
				return Order{}, err
			}
			empty = !ok
		}
		if empty {
			if err := s.Store.DeleteAllLineItems(ctx, orderID); err != nil {
				return Order{}, err
			}
			s.Log.Info().Str("order_id", orderID.String()).Msg("order emptied on distribution change")
		}
	}

	if err := s.Store.UpdateOrderDistribution(ctx, orderID, distributorID, orderCycleID); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderDistributionChanged, orderID, map[string]any{
		"distributorId": uuidOrNil(distributorID),
		"orderCycleId":  uuidOrNil(orderCycleID),
	})
	return s.Store.GetOrder(ctx, orderID)
}

// AddVariant puts a variant in the order or replaces the quantities of its
// existing line. MaxQuantity supports ordering "up to" an amount; it may not
// be below the firm quantity.
func (s *Service) AddVariant(ctx context.Context, orderID, variantID uuid.UUID, quantity int32, maxQuantity *int32) (Order, error) {
	if quantity <= 0 {
		return Order{}, ErrInvalidQuantity
	}
	if maxQuantity != nil && *maxQuantity < quantity {
		return Order{}, ErrInvalidQuantity
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != StateCart {
		return Order{}, ErrNotEditable
	}
	variant, err := s.Store.GetVariant(ctx, variantID)
	if err != nil {
		return Order{}, err
	}
	if o.DistributorID != nil {
		ok, err := s.variantAvailable(ctx, variant, *o.DistributorID, o.OrderCycleID)
		if err != nil {
			return Order{}, err
		}
		if !ok {
			return Order{}, ErrVariantUnavailable
		}
	}

	li := LineItem{
		ID:          uuid.New(),
		OrderID:     orderID,
		ProductID:   variant.ProductID,
		VariantID:   variantID,
		Quantity:    quantity,
		MaxQuantity: maxQuantity,
		Price:       variant.Price,
		Currency:    o.Currency,
	}
	if existing, ok := o.FindLineItemByVariant(variantID); ok {
		li.ID = existing.ID
	}
	if err := s.Store.UpsertLineItem(ctx, li); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderContentsChanged, orderID, map[string]any{"variantId": variantID.String()})
	return s.Store.GetOrder(ctx, orderID)
}

// RemoveLineItem takes one line out of the order.
func (s *Service) RemoveLineItem(ctx context.Context, orderID, lineItemID uuid.UUID) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != StateCart {
		return Order{}, ErrNotEditable
	}
	if err := s.Store.DeleteLineItem(ctx, orderID, lineItemID); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderContentsChanged, orderID, map[string]any{"lineItemId": lineItemID.String()})
	return s.Store.GetOrder(ctx, orderID)
}

// Complete places the cart order. A distributor must be chosen by then so
// the charges have an owner.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != StateCart {
		return Order{}, ErrInvalidTransition
	}
	if o.DistributorID == nil {
		return Order{}, ErrDistributionRequired
	}
	if err := s.Store.UpdateOrderState(ctx, orderID, StateComplete); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderCompleted, orderID, map[string]any{"number": o.Number})
	return s.Store.GetOrder(ctx, orderID)
}

// Cancel voids a cart or completed order.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != StateCart && o.State != StateComplete {
		return Order{}, ErrInvalidTransition
	}
	if err := s.Store.UpdateOrderState(ctx, orderID, StateCanceled); err != nil {
		return Order{}, err
	}
	s.emit(ctx, events.TopicOrderCanceled, orderID, map[string]any{"number": o.Number})
	return s.Store.GetOrder(ctx, orderID)
}

func (s *Service) validateDistribution(ctx context.Context, distributorID, orderCycleID *uuid.UUID) error {
	if distributorID == nil {
		if orderCycleID != nil {
			return ErrDistributionRequired
		}
		return nil
	}
	ent, err := s.Store.GetEnterprise(ctx, *distributorID)
	if err != nil {
		return err
	}
	if !ent.IsDistributor {
		return ErrNotDistributor
	}
	if orderCycleID == nil {
		return nil
	}
	oc, err := s.Store.GetOrderCycle(ctx, *orderCycleID)
	if err != nil {
		return err
	}
	if !oc.Open(s.now()) {
		return ErrCycleClosed
	}
	if !oc.HasDistributor(*distributorID) {
		return ErrCycleMismatch
	}
	return nil
}

// variantAvailable reports whether the distribution can supply the variant,
// either through the order cycle's outgoing exchanges or a direct product
// link to the distributor.
func (s *Service) variantAvailable(ctx context.Context, variant catalog.Variant, distributorID uuid.UUID, orderCycleID *uuid.UUID) (bool, error) {
	if orderCycleID != nil {
		oc, err := s.Store.GetOrderCycle(ctx, *orderCycleID)
		if err != nil {
			return false, err
		}
		for _, id := range oc.VariantsFor(distributorID) {
			if id == variant.ID {
				return true, nil
			}
		}
	}
	links, err := s.Store.ProductDistributionsFor(ctx, distributorID, []uuid.UUID{variant.ProductID})
	if err != nil {
		return false, err
	}
	_, ok := links[variant.ProductID]
	return ok, nil
}

func (s *Service) contentsAvailable(ctx context.Context, items []LineItem, distributorID, orderCycleID *uuid.UUID) (bool, error) {
	if distributorID == nil {
		return false, nil
	}
	for _, li := range items {
		variant, err := s.Store.GetVariant(ctx, li.VariantID)
		if err != nil {
			return false, err
		}
		ok, err := s.variantAvailable(ctx, variant, *distributorID, orderCycleID)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) emit(ctx context.Context, topic string, orderID uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, orderID, payload); err != nil {
		s.Log.Error().Err(err).Str("topic", topic).Str("order_id", orderID.String()).Msg("event fan-out failed")
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func uuidOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
