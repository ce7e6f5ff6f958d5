package store

import (
	"context"

	"github.com/foodshed/market-api/internal/audit"
)

// InsertAuditLog persists one audit entry and returns it with server
// timestamps filled in.
func (s *Store) InsertAuditLog(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO audit_logs (id, actor_kind, actor_user_id, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`,
		e.ID, e.ActorKind, e.ActorUserID, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, e.Metadata)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return audit.Entry{}, err
	}
	return e, nil
}

// ListAuditLogs pages through audit entries newest first.
func (s *Store) ListAuditLogs(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, actor_kind, actor_user_id, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
