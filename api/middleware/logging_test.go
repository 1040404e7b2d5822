package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmexchange-backend/pkg/config"
	"github.com/angelmondragon/farmexchange-backend/pkg/logger"
	"github.com/angelmondragon/farmexchange-backend/pkg/metrics"
)

func TestLoggingRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	reg := prometheus.NewRegistry()
	m := metrics.NewMarketplace(reg)

	r := chi.NewRouter()
	r.Use(RequestID(logg), Logging(logg, m))
	r.Get("/api/v1/harvests/{harvestId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/harvests/123", nil)
	req.Header.Set("X-Request-Id", "req-42")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "req-42", resp.Header().Get("X-Request-Id"))
	assert.Contains(t, buf.String(), "request.complete")
	assert.Contains(t, buf.String(), "req-42")

	count, err := testutil.GatherAndCount(reg, "farmx_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	expected := `
# HELP farmx_http_requests_total HTTP requests served.
# TYPE farmx_http_requests_total counter
farmx_http_requests_total{method="GET",route="/api/v1/harvests/{harvestId}",status="404"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected), "farmx_http_requests_total"))
}

func TestLoggingToleratesMissingCollaborators(t *testing.T) {
	handler := Logging(nil, nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestRecovererReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})
	handler := Recoverer(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("ledger exploded")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, buf.String(), "panic.recovered")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS(config.CORSConfig{AllowedOrigins: []string{"https://farmx.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/harvests", nil)
	req.Header.Set("Origin", "https://farmx.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	assert.Equal(t, "https://farmx.example", resp.Header().Get("Access-Control-Allow-Origin"))
}
