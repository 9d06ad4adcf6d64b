package common

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "principal/user-id"
	sidKey    ctxKey = "principal/sid"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithSID stores the anonymous session key on the provided context.
func WithSID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sidKey, sid)
}

// SID extracts the anonymous session key from the context if present.
func SID(ctx context.Context) (string, bool) {
	v := ctx.Value(sidKey)
	if v == nil {
		return "", false
	}
	sid, ok := v.(string)
	return sid, ok
}
