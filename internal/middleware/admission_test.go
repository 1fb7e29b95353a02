package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rezolv/rezolv/internal/handlers"
	"github.com/rezolv/rezolv/internal/middleware"
	"github.com/rezolv/rezolv/internal/ratelimit"
	"github.com/rezolv/rezolv/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAdmissionAPI(t *testing.T, policy *ratelimit.Policy) *chi.Mux {
	t.Helper()

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))

	limiter := ratelimit.NewLimiter(store.NewMemoryCounterStore(), policy, zap.NewNop())
	api.UseMiddleware(middleware.Admission(api, limiter, zap.NewNop()))

	huma.Register(api, huma.Operation{
		OperationID: "limited",
		Method:      http.MethodGet,
		Path:        "/limited",
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: "limited"},
		},
	}, func(_ context.Context, _ *struct{}) (*testOutput, error) {
		return &testOutput{Body: "ok"}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "quiet",
		Method:      http.MethodGet,
		Path:        "/quiet",
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: "limited", SuppressHeaders: true},
		},
	}, func(_ context.Context, _ *struct{}) (*testOutput, error) {
		return &testOutput{Body: "ok"}, nil
	})

	huma.Get(api, "/untagged", func(_ context.Context, _ *struct{}) (*testOutput, error) {
		return &testOutput{Body: "ok"}, nil
	})

	return router
}

func twoPerMinute() *ratelimit.Policy {
	return &ratelimit.Policy{Endpoints: map[string]ratelimit.EndpointLimits{
		"limited": {
			Authenticated: ratelimit.LimitConfig{Limit: 2, Window: time.Minute},
			Anonymous:     ratelimit.LimitConfig{Limit: 2, Window: time.Minute},
		},
	}}
}

func get(router *chi.Mux, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	return w
}

func TestAdmission(t *testing.T) {
	t.Run("sets quota headers on tagged routes", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())

		w := get(router, "/limited", map[string]string{"X-Real-IP": "192.0.2.1"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("suppresses quota headers where configured", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())

		w := get(router, "/quiet", map[string]string{"X-Real-IP": "192.0.2.1"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("rejects over-limit callers with 429 and Retry-After", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())
		headers := map[string]string{"X-Real-IP": "192.0.2.1"}

		for range 2 {
			require.Equal(t, http.StatusOK, get(router, "/limited", headers).Code)
		}

		w := get(router, "/limited", headers)

		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("429 body carries the rate_limited error code", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())
		headers := map[string]string{"X-Real-IP": "192.0.2.1"}

		for range 2 {
			get(router, "/limited", headers)
		}

		w := get(router, "/limited", headers)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

		var body huma.ErrorModel
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, handlers.CodeRateLimited, body.Type)
		assert.Equal(t, http.StatusTooManyRequests, body.Status)
		assert.Equal(t, "rate limit exceeded", body.Detail)
	})

	t.Run("separate clients have separate quotas", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())

		for range 2 {
			get(router, "/limited", map[string]string{"X-Real-IP": "192.0.2.1"})
		}

		require.Equal(t, http.StatusTooManyRequests,
			get(router, "/limited", map[string]string{"X-Real-IP": "192.0.2.1"}).Code)
		assert.Equal(t, http.StatusOK,
			get(router, "/limited", map[string]string{"X-Real-IP": "192.0.2.2"}).Code)
	})

	t.Run("authenticated callers use their own quota", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())

		anon := map[string]string{"X-Real-IP": "192.0.2.1"}
		auth := map[string]string{"X-Real-IP": "192.0.2.1", "X-User-ID": "user-42"}

		for range 2 {
			get(router, "/limited", anon)
		}

		require.Equal(t, http.StatusTooManyRequests, get(router, "/limited", anon).Code)
		assert.Equal(t, http.StatusOK, get(router, "/limited", auth).Code)
	})

	t.Run("untagged routes bypass admission", func(t *testing.T) {
		router := setupAdmissionAPI(t, twoPerMinute())

		for range 10 {
			w := get(router, "/untagged", map[string]string{"X-Real-IP": "192.0.2.1"})

			require.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		}
	})
}
