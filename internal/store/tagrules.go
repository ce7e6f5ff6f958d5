package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/foodshed/market-api/internal/tagrule"
)

const tagRuleColumns = `id, enterprise_id, kind, is_default, priority, customer_tags, preferred_tags, matched_visibility, created_at`

func scanTagRule(row pgx.Row) (tagrule.Rule, error) {
	var r tagrule.Rule
	err := row.Scan(&r.ID, &r.EnterpriseID, &r.Kind, &r.IsDefault, &r.Priority,
		&r.CustomerTags, &r.PreferredTags, &r.MatchedVisibility, &r.CreatedAt)
	return r, mapNoRows(err)
}

// ListTagRules returns the enterprise's rules of one kind in evaluation
// order.
func (s *Store) ListTagRules(ctx context.Context, enterpriseID uuid.UUID, kind tagrule.Kind) ([]tagrule.Rule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+tagRuleColumns+` FROM tag_rules
		WHERE enterprise_id = $1 AND kind = $2
		ORDER BY priority, created_at, id`, enterpriseID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTagRules(rows)
}

// ListTagRulesForEnterprises returns all rules of one kind owned by any of
// the enterprises, for batch filtering across a shopfront listing.
func (s *Store) ListTagRulesForEnterprises(ctx context.Context, enterpriseIDs []uuid.UUID, kind tagrule.Kind) ([]tagrule.Rule, error) {
	if len(enterpriseIDs) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+tagRuleColumns+` FROM tag_rules
		WHERE enterprise_id = ANY($1) AND kind = $2
		ORDER BY priority, created_at, id`, enterpriseIDs, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTagRules(rows)
}

// ListAllTagRules returns every rule the enterprise owns, for the admin
// surface.
func (s *Store) ListAllTagRules(ctx context.Context, enterpriseID uuid.UUID) ([]tagrule.Rule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+tagRuleColumns+` FROM tag_rules
		WHERE enterprise_id = $1
		ORDER BY kind, priority, created_at, id`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTagRules(rows)
}

// CreateTagRule inserts a rule.
func (s *Store) CreateTagRule(ctx context.Context, r tagrule.Rule) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tag_rules (id, enterprise_id, kind, is_default, priority, customer_tags, preferred_tags, matched_visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.EnterpriseID, r.Kind, r.IsDefault, r.Priority, r.CustomerTags, r.PreferredTags, r.MatchedVisibility)
	return err
}

// UpdateTagRule rewrites a rule's tunable fields.
func (s *Store) UpdateTagRule(ctx context.Context, r tagrule.Rule) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE tag_rules
		SET is_default = $3, priority = $4, customer_tags = $5, preferred_tags = $6, matched_visibility = $7
		WHERE id = $1 AND enterprise_id = $2`,
		r.ID, r.EnterpriseID, r.IsDefault, r.Priority, r.CustomerTags, r.PreferredTags, r.MatchedVisibility)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tagrule.ErrNotFound
	}
	return nil
}

// DeleteTagRule removes a rule owned by the enterprise.
func (s *Store) DeleteTagRule(ctx context.Context, enterpriseID, ruleID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM tag_rules WHERE id = $1 AND enterprise_id = $2`, ruleID, enterpriseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tagrule.ErrNotFound
	}
	return nil
}

func collectTagRules(rows pgx.Rows) ([]tagrule.Rule, error) {
	var out []tagrule.Rule
	for rows.Next() {
		r, err := scanTagRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
