package identity

import "context"

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID attaches the authenticated caller's opaque user ID to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller's user ID, or "" when the request is
// unauthenticated. Absence is not an error here; callers decide what it means.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
