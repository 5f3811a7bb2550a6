package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/accounts/{id}", "200", 0.01)
	m.ObserveRequest("/accounts/{id}", "503", 0.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/accounts/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamFailure.WithLabelValues("/accounts/{id}")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveRequest("/", "200", 0) })
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveRequest("/healthz", "200", 0.001)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "digitalbank_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}
