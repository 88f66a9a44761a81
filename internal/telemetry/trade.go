package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// TradeTelemetry records trade session metrics. A nil *TradeTelemetry is valid and records nothing.
type TradeTelemetry struct {
	pollCounter      metric.Int64Counter
	pollErrorCounter metric.Int64Counter
	pollDuration     metric.Float64Histogram
	attemptFailures  metric.Int64Counter
	sessionCounter   metric.Int64Counter
	staleResponses   metric.Int64Counter
}

// NewTradeTelemetry creates the trade instruments on meter
func NewTradeTelemetry(meter metric.Meter) (*TradeTelemetry, error) {
	t := &TradeTelemetry{}
	var err error

	t.pollCounter, err = meter.Int64Counter(
		"trade_status_polls_total",
		metric.WithDescription("Status snapshots applied, by status code"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll counter: %w", err)
	}

	t.pollErrorCounter, err = meter.Int64Counter(
		"trade_status_poll_errors_total",
		metric.WithDescription("Status polls that failed with a transport or protocol error"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll error counter: %w", err)
	}

	t.pollDuration, err = meter.Float64Histogram(
		"trade_status_poll_duration_seconds",
		metric.WithDescription("Round trip time of status polls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll duration histogram: %w", err)
	}

	t.attemptFailures, err = meter.Int64Counter(
		"trade_attempt_failures_total",
		metric.WithDescription("Trade initiations aborted during select or start"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create attempt failure counter: %w", err)
	}

	t.sessionCounter, err = meter.Int64Counter(
		"trade_sessions_total",
		metric.WithDescription("Trade sessions that reached a terminal phase, by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session counter: %w", err)
	}

	t.staleResponses, err = meter.Int64Counter(
		"trade_stale_responses_total",
		metric.WithDescription("Status responses discarded as out of order or from an old session"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale response counter: %w", err)
	}

	slog.Debug("Trade telemetry initialized")
	return t, nil
}

// RecordPoll records one successful status poll
func (t *TradeTelemetry) RecordPoll(ctx context.Context, statusCode string, duration time.Duration) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status_code", statusCode))
	t.pollCounter.Add(ctx, 1, attrs)
	t.pollDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPollError records one failed status poll
func (t *TradeTelemetry) RecordPollError(ctx context.Context, err error, duration time.Duration) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("error_type", categorizeError(err)))
	t.pollErrorCounter.Add(ctx, 1, attrs)
	t.pollDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status_code", "ERROR")))
}

// RecordAttemptFailure records a select or start failure
func (t *TradeTelemetry) RecordAttemptFailure(ctx context.Context, stage string) {
	if t == nil {
		return
	}
	t.attemptFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordOutcome records a session reaching a terminal phase
func (t *TradeTelemetry) RecordOutcome(ctx context.Context, outcome string) {
	if t == nil {
		return
	}
	t.sessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStaleResponse records a discarded status response
func (t *TradeTelemetry) RecordStaleResponse(ctx context.Context) {
	if t == nil {
		return
	}
	t.staleResponses.Add(ctx, 1)
}

// categorizeError keeps the error_type attribute low-cardinality
func categorizeError(err error) string {
	var categorized interface{ Category() string }
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &categorized):
		return categorized.Category()
	default:
		return "other"
	}
}
