package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/rezolv/rezolv/internal/clicks"
	"github.com/rezolv/rezolv/internal/handlers"
)

// RequestMeta is a middleware that adds the client address, user agent,
// referrer, and authenticated user to the request context.
func RequestMeta(_ huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := clicks.RequestMeta{
			ClientAddress: clientIP(ctx),
			UserAgent:     ctx.Header("User-Agent"),
			Referrer:      ctx.Header("Referer"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		if userID := ctx.Header(userIDHeader); userID != "" {
			newCtx = handlers.ContextWithUserID(newCtx, userID)
		}

		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}
