package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rezolv/rezolv/internal/handlers"
	"github.com/rezolv/rezolv/internal/ratelimit"
	"go.uber.org/zap"
)

// userIDHeader is set by the upstream auth layer; its value is trusted.
const userIDHeader = "X-User-ID"

// Admission returns a huma middleware that enforces the rate-limit policy
// on routes tagged with an admission endpoint key. Mutation and list
// routes get quota headers; the redirect route suppresses them.
func Admission(_ huma.API, limiter *ratelimit.Limiter, logger *zap.Logger) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg == nil {
			next(ctx)

			return
		}

		identity := resolveIdentity(ctx)
		decision := limiter.CheckAndConsume(ctx.Context(), identity, cfg.Endpoint)

		if !cfg.SuppressHeaders && decision.Limit > 0 {
			ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			retryAfter := int64(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))

			logger.Warn("request rate limited",
				zap.String("endpoint", cfg.Endpoint),
				zap.String("identity", identity.Key),
				zap.Bool("authenticated", identity.Authenticated),
			)

			ctx.SetHeader("Content-Type", "application/problem+json")
			ctx.SetStatus(http.StatusTooManyRequests)
			_ = json.NewEncoder(ctx.BodyWriter()).Encode(&huma.ErrorModel{
				Type:   handlers.CodeRateLimited,
				Title:  http.StatusText(http.StatusTooManyRequests),
				Status: http.StatusTooManyRequests,
				Detail: "rate limit exceeded",
			})

			return
		}

		next(ctx)
	}
}

func resolveIdentity(ctx huma.Context) ratelimit.Identity {
	if userID := ctx.Header(userIDHeader); userID != "" {
		return ratelimit.Identity{Key: userID, Authenticated: true}
	}

	return ratelimit.Identity{Key: clientIP(ctx)}
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(ctx huma.Context) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// First entry is the original client
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return xri
	}

	host := ctx.Host()

	ip, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}

	return ip
}
