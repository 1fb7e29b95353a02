package handlers

import (
	"context"

	"github.com/rezolv/rezolv/internal/clicks"
)

type requestMetaKey struct{}

type userIDKey struct{}

// ContextWithRequestMeta adds request metadata to the context.
func ContextWithRequestMeta(ctx context.Context, meta clicks.RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from the context.
func RequestMetaFromContext(ctx context.Context) clicks.RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(clicks.RequestMeta); ok {
		return v
	}

	return clicks.RequestMeta{}
}

// ContextWithUserID records the authenticated user, as asserted by the
// upstream auth layer.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, empty for anonymous
// callers.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}

	return ""
}
