package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/fulfillment"
)

// FulfillmentMetrics tracks retry orchestration activity: how many provider
// attempts each operation makes, how the runs terminate, and webhook delivery
// traffic at the ingress.
type FulfillmentMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	attemptsTotal    *Counter
	outcomesTotal    *Counter
	webhooksTotal    *Counter
	providerDuration *Histogram
}

// FulfillmentMetricsConfig holds configuration for fulfillment metrics.
type FulfillmentMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewFulfillmentMetrics creates a new FulfillmentMetrics instance.
func NewFulfillmentMetrics(cfg FulfillmentMetricsConfig) (*FulfillmentMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fm := &FulfillmentMetrics{
		meter:  cfg.Meter,
		logger: logger,
	}

	var err error

	fm.attemptsTotal, err = NewCounter(
		cfg.Meter,
		"orderbridge_fulfillment_attempts_total",
		"Total number of provider attempts, labeled by operation and classified error kind",
		"{attempts}",
	)
	if err != nil {
		return nil, err
	}

	fm.outcomesTotal, err = NewCounter(
		cfg.Meter,
		"orderbridge_fulfillment_outcomes_total",
		"Total number of terminal orchestration outcomes per operation",
		"{outcomes}",
	)
	if err != nil {
		return nil, err
	}

	fm.webhooksTotal, err = NewCounter(
		cfg.Meter,
		"orderbridge_webhook_deliveries_total",
		"Total number of webhook deliveries received, labeled by topic and outcome",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	fm.providerDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "orderbridge_provider_request_duration_seconds",
		Description: "Duration of outbound provider requests",
		Unit:        "s",
		Boundaries:  HTTPDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return fm, nil
}

// RecordAttempt records one provider attempt. An empty kind means the attempt
// succeeded.
func (fm *FulfillmentMetrics) RecordAttempt(ctx context.Context, operation string, kind fulfillment.ErrorKind) {
	outcome := "success"
	if kind != fulfillment.KindNone {
		outcome = "failure"
	}
	fm.attemptsTotal.Inc(ctx,
		AttrOperation.String(operation),
		AttrErrorKind.String(string(kind)),
		AttrOutcome.String(outcome),
	)
}

// RecordOutcome records the terminal state of one orchestration run.
func (fm *FulfillmentMetrics) RecordOutcome(ctx context.Context, operation string, state fulfillment.State) {
	fm.outcomesTotal.Inc(ctx,
		AttrOperation.String(operation),
		AttrOutcome.String(string(state)),
	)
}

// RecordWebhookDelivery records one received webhook delivery. Duplicate
// deliveries that were deduplicated are labeled separately so redelivery
// storms are visible.
func (fm *FulfillmentMetrics) RecordWebhookDelivery(ctx context.Context, topic string, duplicate bool) {
	outcome := "processed"
	if duplicate {
		outcome = "duplicate"
	}
	fm.webhooksTotal.Inc(ctx,
		AttrWebhookTopic.String(topic),
		AttrOutcome.String(outcome),
	)
}

// RecordProviderDuration records the latency of one outbound provider call.
func (fm *FulfillmentMetrics) RecordProviderDuration(ctx context.Context, provider string, d time.Duration) {
	fm.providerDuration.RecordDuration(ctx, d, AttrProvider.String(provider))
}

var _ fulfillment.MetricsRecorder = (*FulfillmentMetrics)(nil)

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewFulfillmentMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
