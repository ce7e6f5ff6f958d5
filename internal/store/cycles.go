package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/cycle"
	"github.com/foodshed/market-api/internal/fee"
)

const feeColumns = `f.id, f.enterprise_id, e.name, f.name, f.fee_type, f.included_tax_rate_bps, f.calculator_kind, f.amount, f.percent_bps, f.created_at`

func scanFee(row pgx.Row) (fee.EnterpriseFee, error) {
	var f fee.EnterpriseFee
	err := row.Scan(&f.ID, &f.EnterpriseID, &f.EnterpriseName, &f.Name, &f.FeeType,
		&f.IncludedTaxRateBps, &f.Calculator.Kind, &f.Calculator.Amount, &f.Calculator.PercentBps, &f.CreatedAt)
	return f, mapNoRows(err)
}

// GetEnterpriseFee loads one fee with its owning enterprise's name.
func (s *Store) GetEnterpriseFee(ctx context.Context, id uuid.UUID) (fee.EnterpriseFee, error) {
	return scanFee(s.Pool.QueryRow(ctx, `
		SELECT `+feeColumns+`
		FROM enterprise_fees f JOIN enterprises e ON e.id = f.enterprise_id
		WHERE f.id = $1`, id))
}

// ListEnterpriseFees lists the fees an enterprise charges.
func (s *Store) ListEnterpriseFees(ctx context.Context, enterpriseID uuid.UUID) ([]fee.EnterpriseFee, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+feeColumns+`
		FROM enterprise_fees f JOIN enterprises e ON e.id = f.enterprise_id
		WHERE f.enterprise_id = $1
		ORDER BY f.name, f.id`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFees(rows)
}

// CreateEnterpriseFee inserts a fee definition.
func (s *Store) CreateEnterpriseFee(ctx context.Context, f fee.EnterpriseFee) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO enterprise_fees (id, enterprise_id, name, fee_type, included_tax_rate_bps, calculator_kind, amount, percent_bps)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.EnterpriseID, f.Name, f.FeeType, f.IncludedTaxRateBps,
		f.Calculator.Kind, f.Calculator.Amount, f.Calculator.PercentBps)
	return err
}

// GetOrderCycle loads a cycle with its exchanges, their variants and fees,
// and the coordinator fees.
func (s *Store) GetOrderCycle(ctx context.Context, id uuid.UUID) (cycle.OrderCycle, error) {
	return s.getOrderCycle(ctx, s.Pool, id)
}

func (s *Store) getOrderCycle(ctx context.Context, q querier, id uuid.UUID) (cycle.OrderCycle, error) {
	var oc cycle.OrderCycle
	err := q.QueryRow(ctx, `
		SELECT id, name, coordinator_id, orders_open_at, orders_close_at, tags
		FROM order_cycles WHERE id = $1`, id).
		Scan(&oc.ID, &oc.Name, &oc.CoordinatorID, &oc.OrdersOpenAt, &oc.OrdersCloseAt, &oc.Tags)
	if err != nil {
		return cycle.OrderCycle{}, mapNoRows(err)
	}
	if oc.Exchanges, err = loadExchanges(ctx, q, id); err != nil {
		return cycle.OrderCycle{}, err
	}
	if oc.CoordinatorFees, err = loadCoordinatorFees(ctx, q, id); err != nil {
		return cycle.OrderCycle{}, err
	}
	return oc, nil
}

// ListOpenOrderCycles lists the open cycles that have an outgoing exchange to
// the distributor, fully hydrated, soonest closing first.
func (s *Store) ListOpenOrderCycles(ctx context.Context, distributorID uuid.UUID) ([]cycle.OrderCycle, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT DISTINCT oc.id
		FROM order_cycles oc
		JOIN exchanges ex ON ex.order_cycle_id = oc.id
		WHERE ex.direction = 'outgoing' AND ex.receiver_id = $1
		  AND oc.orders_open_at <= now() AND oc.orders_close_at > now()`,
		distributorID)
	if err != nil {
		return nil, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return nil, err
	}

	out := make([]cycle.OrderCycle, 0, len(ids))
	for _, id := range ids {
		oc, err := s.GetOrderCycle(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	cycle.SortByClose(out)
	return out, nil
}

func loadExchanges(ctx context.Context, q querier, orderCycleID uuid.UUID) ([]cycle.Exchange, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_cycle_id, sender_id, receiver_id, direction
		FROM exchanges WHERE order_cycle_id = $1
		ORDER BY direction, id`, orderCycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []cycle.Exchange
	for rows.Next() {
		var ex cycle.Exchange
		if err := rows.Scan(&ex.ID, &ex.OrderCycleID, &ex.SenderID, &ex.ReceiverID, &ex.Direction); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range exchanges {
		if exchanges[i].VariantIDs, err = loadExchangeVariants(ctx, q, exchanges[i].ID); err != nil {
			return nil, err
		}
		if exchanges[i].Fees, err = loadExchangeFees(ctx, q, exchanges[i].ID); err != nil {
			return nil, err
		}
	}
	return exchanges, nil
}

func loadExchangeVariants(ctx context.Context, q querier, exchangeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		SELECT variant_id FROM exchange_variants
		WHERE exchange_id = $1 ORDER BY variant_id`, exchangeID)
	if err != nil {
		return nil, err
	}
	return collectIDs(rows)
}

func loadExchangeFees(ctx context.Context, q querier, exchangeID uuid.UUID) ([]fee.EnterpriseFee, error) {
	rows, err := q.Query(ctx, `
		SELECT `+feeColumns+`
		FROM exchange_fees xf
		JOIN enterprise_fees f ON f.id = xf.enterprise_fee_id
		JOIN enterprises e ON e.id = f.enterprise_id
		WHERE xf.exchange_id = $1
		ORDER BY xf.position, f.id`, exchangeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFees(rows)
}

func loadCoordinatorFees(ctx context.Context, q querier, orderCycleID uuid.UUID) ([]fee.EnterpriseFee, error) {
	rows, err := q.Query(ctx, `
		SELECT `+feeColumns+`
		FROM coordinator_fees cf
		JOIN enterprise_fees f ON f.id = cf.enterprise_fee_id
		JOIN enterprises e ON e.id = f.enterprise_id
		WHERE cf.order_cycle_id = $1
		ORDER BY cf.position, f.id`, orderCycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFees(rows)
}

// ProductDistributionsFor returns the distributor's direct product links for
// the given products, keyed by product id.
func (s *Store) ProductDistributionsFor(ctx context.Context, distributorID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]fee.ProductDistribution, error) {
	return productDistributionsFor(ctx, s.Pool, distributorID, productIDs)
}

func productDistributionsFor(ctx context.Context, q querier, distributorID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]fee.ProductDistribution, error) {
	out := map[uuid.UUID]fee.ProductDistribution{}
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT pd.id, pd.product_id, pd.distributor_id, `+feeColumns+`
		FROM product_distributions pd
		JOIN enterprise_fees f ON f.id = pd.enterprise_fee_id
		JOIN enterprises e ON e.id = f.enterprise_id
		WHERE pd.distributor_id = $1 AND pd.product_id = ANY($2)`,
		distributorID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pd fee.ProductDistribution
		if err := rows.Scan(&pd.ID, &pd.ProductID, &pd.DistributorID,
			&pd.Fee.ID, &pd.Fee.EnterpriseID, &pd.Fee.EnterpriseName, &pd.Fee.Name, &pd.Fee.FeeType,
			&pd.Fee.IncludedTaxRateBps, &pd.Fee.Calculator.Kind, &pd.Fee.Calculator.Amount,
			&pd.Fee.Calculator.PercentBps, &pd.Fee.CreatedAt); err != nil {
			return nil, err
		}
		out[pd.ProductID] = pd
	}
	return out, rows.Err()
}

func collectFees(rows pgx.Rows) ([]fee.EnterpriseFee, error) {
	var out []fee.EnterpriseFee
	for rows.Next() {
		f, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func collectIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
