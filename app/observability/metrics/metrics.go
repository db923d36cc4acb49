package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	AuthAttemptsTotal        metric.Int64Counter
	AuthDurationSeconds      metric.Float64Histogram
	OwnershipChecksTotal     metric.Int64Counter
	OwnershipRegisteredTotal metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments once, from the
// globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("myjournal-api")
		var err error
		m := &AppMetrics{}

		m.AuthAttemptsTotal, err = meter.Int64Counter(
			"auth_attempts_total",
			metric.WithDescription("Total number of authentication attempts, by outcome"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_attempts_total: %v", err)
		}

		m.AuthDurationSeconds, err = meter.Float64Histogram(
			"auth_duration_seconds",
			metric.WithDescription("Duration of authentication attempts in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_duration_seconds: %v", err)
		}

		m.OwnershipChecksTotal, err = meter.Int64Counter(
			"ownership_checks_total",
			metric.WithDescription("Total number of ownership verifications, by outcome"),
			metric.WithUnit("{check}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create ownership_checks_total: %v", err)
		}

		m.OwnershipRegisteredTotal, err = meter.Int64Counter(
			"ownership_registered_total",
			metric.WithDescription("Total number of resource URIs registered"),
			metric.WithUnit("{resource}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create ownership_registered_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
