package telemetry

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPTelemetry records request metrics for the simulator API
type HTTPTelemetry struct {
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

// NewHTTPTelemetry creates the HTTP instruments on meter
func NewHTTPTelemetry(meter metric.Meter) (*HTTPTelemetry, error) {
	t := &HTTPTelemetry{}
	var err error

	t.requestCounter, err = meter.Int64Counter(
		"tradesim_requests_total",
		metric.WithDescription("Requests served by the trade simulator"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"tradesim_request_duration_seconds",
		metric.WithDescription("Duration of trade simulator requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return t, nil
}

// Middleware records one counter increment and one duration sample per request. The endpoint
// attribute is the route template, never the raw path.
func (t *HTTPTelemetry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("endpoint", routeTemplate(r)),
			attribute.Int("status_code", wrapper.statusCode),
		)
		duration := time.Since(start)
		t.requestCounter.Add(r.Context(), 1, attrs)
		t.durationHistogram.Record(r.Context(), duration.Seconds(), attrs)

		slog.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", wrapper.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// responseWriterWrapper captures the status code written by the handler
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
