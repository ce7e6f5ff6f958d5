package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/foodshed/market-api/internal/order"
)

const orderColumns = `id, number, customer_id, distributor_id, order_cycle_id, state, currency, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o           order.Order
		customer    pgtype.UUID
		distributor pgtype.UUID
		orderCycle  pgtype.UUID
	)
	err := row.Scan(&o.ID, &o.Number, &customer, &distributor, &orderCycle, &o.State, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, order.ErrNotFound
		}
		return order.Order{}, err
	}
	o.CustomerID = uuidPtr(customer)
	o.DistributorID = uuidPtr(distributor)
	o.OrderCycleID = uuidPtr(orderCycle)
	return o, nil
}

// GetOrder loads an order with its line items and adjustments.
func (s *Store) GetOrder(ctx context.Context, orderID uuid.UUID) (order.Order, error) {
	return s.getOrder(ctx, s.Pool, orderID, false)
}

func (s *Store) getOrder(ctx context.Context, q querier, orderID uuid.UUID, forUpdate bool) (order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, query, orderID))
	if err != nil {
		return order.Order{}, err
	}
	o.LineItems, err = listLineItems(ctx, q, orderID)
	if err != nil {
		return order.Order{}, err
	}
	o.Adjustments, err = listAdjustments(ctx, q, orderID)
	if err != nil {
		return order.Order{}, err
	}
	return o, nil
}

// CreateOrder inserts an empty order shell.
func (s *Store) CreateOrder(ctx context.Context, o order.Order) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO orders (id, number, customer_id, distributor_id, order_cycle_id, state, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.Number, o.CustomerID, o.DistributorID, o.OrderCycleID, o.State, o.Currency)
	return err
}

// UpdateOrderDistribution sets the order's distributor and order cycle.
func (s *Store) UpdateOrderDistribution(ctx context.Context, orderID uuid.UUID, distributorID, orderCycleID *uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE orders SET distributor_id = $2, order_cycle_id = $3, updated_at = now()
		WHERE id = $1`,
		orderID, distributorID, orderCycleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdateOrderState moves the order to the given state.
func (s *Store) UpdateOrderState(ctx context.Context, orderID uuid.UUID, state string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE orders SET state = $2, updated_at = now() WHERE id = $1`, orderID, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListOrdersByCustomer returns the customer's orders, newest first.
func (s *Store) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]order.Order, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		customerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const lineItemColumns = `id, order_id, product_id, variant_id, quantity, max_quantity, price, currency, created_at`

func listLineItems(ctx context.Context, q querier, orderID uuid.UUID) ([]order.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT `+lineItemColumns+` FROM line_items
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.LineItem
	for rows.Next() {
		var (
			li  order.LineItem
			max pgtype.Int4
		)
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.VariantID, &li.Quantity, &max, &li.Price, &li.Currency, &li.CreatedAt); err != nil {
			return nil, err
		}
		if max.Valid {
			v := max.Int32
			li.MaxQuantity = &v
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

// UpsertLineItem inserts the line or replaces its quantities when the variant
// is already in the order.
func (s *Store) UpsertLineItem(ctx context.Context, li order.LineItem) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO line_items (id, order_id, product_id, variant_id, quantity, max_quantity, price, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_id, variant_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, max_quantity = EXCLUDED.max_quantity, price = EXCLUDED.price`,
		li.ID, li.OrderID, li.ProductID, li.VariantID, li.Quantity, maxQuantityValue(li.MaxQuantity), li.Price, li.Currency)
	if err == nil {
		_, err = s.Pool.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, li.OrderID)
	}
	return err
}

// DeleteLineItem removes one line from the order.
func (s *Store) DeleteLineItem(ctx context.Context, orderID, lineItemID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM line_items WHERE id = $1 AND order_id = $2`, lineItemID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	_, err = s.Pool.Exec(ctx, `UPDATE orders SET updated_at = now() WHERE id = $1`, orderID)
	return err
}

// DeleteAllLineItems empties the order. Used when the order moves to a
// distribution its current contents are not available through.
func (s *Store) DeleteAllLineItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM line_items WHERE order_id = $1`, orderID)
	return err
}

// NextOrderNumber produces a sequential order number.
func (s *Store) NextOrderNumber(ctx context.Context) (string, error) {
	var n int64
	if err := s.Pool.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("R%09d", n), nil
}

func maxQuantityValue(max *int32) pgtype.Int4 {
	if max == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *max, Valid: true}
}

func uuidPtr(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// joinPlaceholders renders $start..$start+n-1 for IN clauses.
func joinPlaceholders(start, n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("$%d", start+i))
	}
	return strings.Join(parts, ", ")
}
