package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/pagedigest"
)

// Metrics holds the OpenTelemetry instruments recorded by the pipelines.
type Metrics struct {
	// Update pipeline
	WebhooksReceivedTotal metric.Int64Counter
	PagesUpsertedTotal    metric.Int64Counter
	PagesEvictedTotal     metric.Int64Counter

	// Digest pipeline
	DigestsBuiltTotal   metric.Int64Counter
	DigestPages         metric.Int64Histogram
	DigestBuildDuration metric.Float64Histogram

	// Delivery
	DeliveriesSentTotal   metric.Int64Counter
	DeliveriesFailedTotal metric.Int64Counter
	DeliveryRetriesTotal  metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments bind to whatever meter provider is global at first use, which is
// a no-op provider unless InitTelemetry ran first.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.WebhooksReceivedTotal, _ = meter.Int64Counter(
		"pagedigest.webhooks.received.total",
		metric.WithDescription("Total number of webhook notifications accepted"),
		metric.WithUnit("{webhook}"),
	)

	m.PagesUpsertedTotal, _ = meter.Int64Counter(
		"pagedigest.pages.upserted.total",
		metric.WithDescription("Total number of page records merged into the store"),
		metric.WithUnit("{page}"),
	)

	m.PagesEvictedTotal, _ = meter.Int64Counter(
		"pagedigest.pages.evicted.total",
		metric.WithDescription("Total number of page records evicted after the retention window"),
		metric.WithUnit("{page}"),
	)

	m.DigestsBuiltTotal, _ = meter.Int64Counter(
		"pagedigest.digests.built.total",
		metric.WithDescription("Total number of digests rendered"),
		metric.WithUnit("{digest}"),
	)

	m.DigestPages, _ = meter.Int64Histogram(
		"pagedigest.digests.pages",
		metric.WithDescription("Number of page records included in each digest"),
		metric.WithUnit("{page}"),
	)

	m.DigestBuildDuration, _ = meter.Float64Histogram(
		"pagedigest.digests.build.duration",
		metric.WithDescription("Duration of digest queries and rendering"),
		metric.WithUnit("ms"),
	)

	m.DeliveriesSentTotal, _ = meter.Int64Counter(
		"pagedigest.deliveries.sent.total",
		metric.WithDescription("Total number of messages delivered to a channel"),
		metric.WithUnit("{message}"),
	)

	m.DeliveriesFailedTotal, _ = meter.Int64Counter(
		"pagedigest.deliveries.failed.total",
		metric.WithDescription("Total number of messages that could not be delivered"),
		metric.WithUnit("{message}"),
	)

	m.DeliveryRetriesTotal, _ = meter.Int64Counter(
		"pagedigest.deliveries.retries.total",
		metric.WithDescription("Total number of delivery attempts retried after a transient failure"),
		metric.WithUnit("{retry}"),
	)

	return m
}
