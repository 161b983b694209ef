// Package metrics exposes Prometheus metrics for the alert console.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/halcyonops/intel-console/internal/database"
	"github.com/halcyonops/intel-console/internal/event"
)

// StatsSource provides aggregate alert counts for gauge collection.
type StatsSource interface {
	Stats(ctx context.Context) (*database.AlertStats, error)
}

// Collector maintains Prometheus metrics: lifecycle counters fed from the
// event bus, and store-level gauges refreshed periodically.
type Collector struct {
	logger   *slog.Logger
	stats    StatsSource
	interval time.Duration

	alertsTotal        *prometheus.CounterVec
	alertsAcknowledged prometheus.Counter
	alertsResolved     prometheus.Counter
	alertsEscalated    prometheus.Counter
	alertsDeleted      prometheus.Counter

	alertsByStatus   *prometheus.GaugeVec
	alertsBySeverity *prometheus.GaugeVec
}

// NewCollector creates and registers the metric set.
func NewCollector(logger *slog.Logger, stats StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c := &Collector{
		logger:   logger,
		stats:    stats,
		interval: interval,
	}

	c.alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_console_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"severity", "source"},
	)
	c.alertsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_console_alerts_acknowledged_total",
		Help: "Total number of alerts acknowledged",
	})
	c.alertsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_console_alerts_resolved_total",
		Help: "Total number of alerts resolved",
	})
	c.alertsEscalated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_console_alerts_escalated_total",
		Help: "Total number of alerts escalated",
	})
	c.alertsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intel_console_alerts_deleted_total",
		Help: "Total number of alerts soft-deleted",
	})
	c.alertsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intel_console_alerts_by_status",
			Help: "Current number of alerts per lifecycle status",
		},
		[]string{"status"},
	)
	c.alertsBySeverity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "intel_console_alerts_by_severity",
			Help: "Current number of alerts per severity",
		},
		[]string{"severity"},
	)

	return c
}

// HandleEvent updates lifecycle counters. Subscribed to the event bus at
// startup.
func (c *Collector) HandleEvent(e event.Event) {
	switch e.Type {
	case event.TypeCreated:
		c.alertsTotal.WithLabelValues(string(e.Severity), e.Source).Inc()
	case event.TypeAcknowledged:
		c.alertsAcknowledged.Inc()
	case event.TypeResolved:
		c.alertsResolved.Inc()
	case event.TypeEscalated:
		c.alertsEscalated.Inc()
	case event.TypeDeleted:
		c.alertsDeleted.Inc()
	}
}

// Start refreshes the store-level gauges until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *Collector) collect(ctx context.Context) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Error("Failed to collect alert stats", "error", err)
		}
		return
	}

	c.alertsByStatus.WithLabelValues("active").Set(float64(stats.Active))
	c.alertsByStatus.WithLabelValues("acknowledged").Set(float64(stats.Acknowledged))
	c.alertsByStatus.WithLabelValues("resolved").Set(float64(stats.Resolved))
	c.alertsByStatus.WithLabelValues("escalated").Set(float64(stats.Escalated))

	c.alertsBySeverity.WithLabelValues("info").Set(float64(stats.Info))
	c.alertsBySeverity.WithLabelValues("warning").Set(float64(stats.Warning))
	c.alertsBySeverity.WithLabelValues("critical").Set(float64(stats.Critical))
	c.alertsBySeverity.WithLabelValues("emergency").Set(float64(stats.Emergency))
}
