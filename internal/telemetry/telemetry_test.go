package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

type categorized struct{}

func (categorized) Error() string    { return "refused" }
func (categorized) Category() string { return "transport" }

func TestTradeTelemetry_Records(t *testing.T) {
	provider, reader := newTestProvider()
	tt, err := NewTradeTelemetry(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tt.RecordPoll(ctx, "STARTED", 20*time.Millisecond)
	tt.RecordPoll(ctx, "TRADE_COMPLETE", 20*time.Millisecond)
	tt.RecordPollError(ctx, categorized{}, time.Millisecond)
	tt.RecordAttemptFailure(ctx, "select")
	tt.RecordOutcome(ctx, "COMPLETE")
	tt.RecordStaleResponse(ctx)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, metrics["trade_status_polls_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["trade_status_poll_errors_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["trade_attempt_failures_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["trade_sessions_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["trade_stale_responses_total"]))
	assert.Contains(t, metrics, "trade_status_poll_duration_seconds")
}

func TestTradeTelemetry_NilIsNoop(t *testing.T) {
	var tt *TradeTelemetry
	assert.NotPanics(t, func() {
		tt.RecordPoll(context.Background(), "IDLE", time.Second)
		tt.RecordOutcome(context.Background(), "FAILED")
	})
}

func TestCategorizeError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, "none"},
		{"timeout", context.DeadlineExceeded, "timeout"},
		{"categorized", categorized{}, "transport"},
		{"plain", errors.New("boom"), "other"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, categorizeError(tc.err))
		})
	}
}

func TestHTTPTelemetry_UsesRouteTemplate(t *testing.T) {
	provider, reader := newTestProvider()
	ht, err := NewHTTPTelemetry(provider.Meter("test"))
	require.NoError(t, err)

	router := mux.NewRouter()
	router.Use(ht.Middleware)
	router.HandleFunc("/api/pokemon/{storageIndex}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, path := range []string{"/api/pokemon/1", "/api/pokemon/2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	metrics := collect(t, reader)
	sum, ok := metrics["tradesim_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1, "both paths share one series")
	endpoint, _ := sum.DataPoints[0].Attributes.Value("endpoint")
	assert.Equal(t, "/api/pokemon/{storageIndex}", endpoint.AsString())
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}
