package common

import "context"

type ctxKey string

const userIDKey ctxKey = "auth/user-id"

// WithUserID attaches the authenticated user's id to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID returns the authenticated user's id, if any.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}
