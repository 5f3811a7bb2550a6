package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digitalbank/internal/ratelimit/metrics"
	"digitalbank/internal/ratelimit/models"
	"digitalbank/internal/ratelimit/service/requestlimit"
	"digitalbank/internal/ratelimit/store/bucket"
	request "digitalbank/pkg/platform/middleware/request"
	testhttp "digitalbank/pkg/testutil"
)

type brokenLimiter struct{}

func (brokenLimiter) CheckIP(context.Context, string, models.EndpointClass) (*models.RateLimitResult, error) {
	return nil, errors.New("redis down")
}

func newRouter(t *testing.T, limiter RateLimiter, opts ...Option) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(limiter, logger, opts...)

	r := chi.NewRouter()
	r.Use(request.Context)
	r.With(m.RateLimit(models.ClassAuth)).Post("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func limiter(t *testing.T, perMinute int) *requestlimit.Service {
	t.Helper()
	svc, err := requestlimit.New(bucket.NewInMemoryBucketStore(), requestlimit.WithLimits(models.RequestLimits{
		models.ClassAuth: {Requests: perMinute, Window: time.Minute},
	}))
	require.NoError(t, err)
	return svc
}

func login(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:51000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit(t *testing.T) {
	t.Run("sets headers and rejects over budget", func(t *testing.T) {
		h := newRouter(t, limiter(t, 2))

		rr := login(h)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))

		login(h)
		rr = login(h)
		testhttp.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
		assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	})

	t.Run("disabled middleware passes through", func(t *testing.T) {
		h := newRouter(t, limiter(t, 1), WithDisabled(true))
		for range 3 {
			assert.Equal(t, http.StatusNoContent, login(h).Code)
		}
	})

	t.Run("store failure fails open", func(t *testing.T) {
		m := metrics.NewRequestMetrics(prometheus.NewRegistry())
		h := newRouter(t, brokenLimiter{}, WithMetrics(m))

		rr := login(h)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors))
	})
}
