package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/foodshed/market-api/internal/adjustment"
)

const adjustmentColumns = `id, order_id, origin, origin_id, scope, source_id, label, amount, included_tax, currency, created_at`

func listAdjustments(ctx context.Context, q querier, orderID uuid.UUID) ([]adjustment.Adjustment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+adjustmentColumns+` FROM adjustments
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []adjustment.Adjustment
	for rows.Next() {
		var adj adjustment.Adjustment
		if err := rows.Scan(&adj.ID, &adj.OrderID, &adj.Origin, &adj.OriginID, &adj.Scope,
			&adj.SourceID, &adj.Label, &adj.Amount, &adj.IncludedTax, &adj.Currency, &adj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

// ListAdjustments returns the order's adjustments in insertion order.
func (s *Store) ListAdjustments(ctx context.Context, orderID uuid.UUID) ([]adjustment.Adjustment, error) {
	return listAdjustments(ctx, s.Pool, orderID)
}

func deleteAdjustmentsByOrigin(ctx context.Context, q querier, orderID uuid.UUID, origin adjustment.Origin) error {
	_, err := q.Exec(ctx, `DELETE FROM adjustments WHERE order_id = $1 AND origin = $2`, orderID, origin)
	return err
}

func insertAdjustments(ctx context.Context, q querier, adjustments []adjustment.Adjustment) error {
	for _, adj := range adjustments {
		_, err := q.Exec(ctx, `
			INSERT INTO adjustments (id, order_id, origin, origin_id, scope, source_id, label, amount, included_tax, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			adj.ID, adj.OrderID, adj.Origin, adj.OriginID, adj.Scope, adj.SourceID,
			adj.Label, adj.Amount, adj.IncludedTax, adj.Currency)
		if err != nil {
			return err
		}
	}
	return nil
}

// InsertAdjustment persists a single adjustment outside a recompute, e.g. a
// manual admin discount.
func (s *Store) InsertAdjustment(ctx context.Context, adj adjustment.Adjustment) error {
	return insertAdjustments(ctx, s.Pool, []adjustment.Adjustment{adj})
}
