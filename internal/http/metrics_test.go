package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := &HTTPMetrics{
		meter:  mp.Meter(httpInstrumentationName),
		logger: zap.NewNop(),
	}
	m.init()

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "# scraped")
	})
	e.POST("/api/v1/scrub", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
		{http.MethodPost, "/api/v1/scrub"},
		{http.MethodGet, "/nope"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = m
		}
	}

	require.Contains(t, found, "secretsh.http.requests_total")
	require.Contains(t, found, "secretsh.http.request_duration_seconds")
	require.Contains(t, found, "secretsh.http.response_size_bytes")

	sum, ok := found["secretsh.http.requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	byEndpoint := map[string]int64{}
	statuses := map[string]int64{}
	for _, dp := range sum.DataPoints {
		endpoint, _ := dp.Attributes.Value("endpoint")
		status, _ := dp.Attributes.Value("status")
		byEndpoint[endpoint.AsString()] += dp.Value
		statuses[endpoint.AsString()] = status.AsInt64()
	}
	assert.Equal(t, int64(1), byEndpoint["/health"])
	assert.Equal(t, int64(1), byEndpoint["/api/v1/scrub"])
	assert.NotContains(t, byEndpoint, "/metrics", "scrapes are not counted")
	assert.Equal(t, int64(http.StatusBadRequest), statuses["/api/v1/scrub"])

	hist, ok := found["secretsh.http.request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/scrub", "/api/v1/scrub"},
		{"/api/v1/status", "/api/v1/status"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input))
	}
}
