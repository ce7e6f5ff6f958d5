package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/enterprise"
)

// GetEnterprise loads one enterprise.
func (s *Store) GetEnterprise(ctx context.Context, id uuid.UUID) (enterprise.Enterprise, error) {
	var e enterprise.Enterprise
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, owner_id, is_distributor, tags, created_at
		FROM enterprises WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.OwnerID, &e.IsDistributor, &e.Tags, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return enterprise.Enterprise{}, enterprise.ErrNotFound
	}
	return e, err
}

// ListDistributors lists the enterprises that can receive orders.
func (s *Store) ListDistributors(ctx context.Context) ([]enterprise.Enterprise, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, owner_id, is_distributor, tags, created_at
		FROM enterprises WHERE is_distributor ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []enterprise.Enterprise
	for rows.Next() {
		var e enterprise.Enterprise
		if err := rows.Scan(&e.ID, &e.Name, &e.OwnerID, &e.IsDistributor, &e.Tags, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListShippingMethods lists a distributor's shipping methods.
func (s *Store) ListShippingMethods(ctx context.Context, distributorID uuid.UUID) ([]enterprise.ShippingMethod, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, enterprise_id, name, require_ship_address, tags, created_at
		FROM shipping_methods WHERE enterprise_id = $1 ORDER BY name, id`, distributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []enterprise.ShippingMethod
	for rows.Next() {
		var m enterprise.ShippingMethod
		if err := rows.Scan(&m.ID, &m.EnterpriseID, &m.Name, &m.RequireShipAddress, &m.Tags, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListPaymentMethods lists a distributor's payment methods, optionally only
// the active ones.
func (s *Store) ListPaymentMethods(ctx context.Context, distributorID uuid.UUID, activeOnly bool) ([]enterprise.PaymentMethod, error) {
	query := `
		SELECT id, enterprise_id, name, active, tags, created_at
		FROM payment_methods WHERE enterprise_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name, id`

	rows, err := s.Pool.Query(ctx, query, distributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []enterprise.PaymentMethod
	for rows.Next() {
		var m enterprise.PaymentMethod
		if err := rows.Scan(&m.ID, &m.EnterpriseID, &m.Name, &m.Active, &m.Tags, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetCustomer loads the shopper's customer record at the enterprise.
func (s *Store) GetCustomer(ctx context.Context, userID, enterpriseID uuid.UUID) (enterprise.Customer, error) {
	var c enterprise.Customer
	err := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, enterprise_id, email, tags, created_at
		FROM customers WHERE user_id = $1 AND enterprise_id = $2`, userID, enterpriseID).
		Scan(&c.ID, &c.UserID, &c.EnterpriseID, &c.Email, &c.Tags, &c.CreatedAt)
	return c, mapNoRows(err)
}

// UpsertCustomer creates or updates the customer record, replacing its tags.
func (s *Store) UpsertCustomer(ctx context.Context, c enterprise.Customer) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO customers (id, user_id, enterprise_id, email, tags)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, enterprise_id)
		DO UPDATE SET email = EXCLUDED.email, tags = EXCLUDED.tags`,
		c.ID, c.UserID, c.EnterpriseID, c.Email, c.Tags)
	return err
}

// IsEnterpriseManager reports whether the user owns or manages the enterprise.
func (s *Store) IsEnterpriseManager(ctx context.Context, userID, enterpriseID uuid.UUID) (bool, error) {
	var ok bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enterprises WHERE id = $2 AND owner_id = $1
			UNION
			SELECT 1 FROM enterprise_managers WHERE user_id = $1 AND enterprise_id = $2
		)`, userID, enterpriseID).Scan(&ok)
	return ok, err
}
