// Package metrics exposes textback operational metrics as a
// prometheus.Collector gathered at scrape time.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/textback/textback/internal/dispatch"
)

// DispatchStatsProvider exposes side-effect dispatcher counters.
type DispatchStatsProvider interface {
	Stats() dispatch.Stats
}

// LimiterSizeProvider returns the number of tracked caller keys.
type LimiterSizeProvider interface {
	Len() int
}

// MessageCounter returns outbound reply counts grouped by fallback stage.
type MessageCounter interface {
	CountByStage(ctx context.Context) (map[string]int64, error)
}

// TenantCounter returns the number of tenant records.
type TenantCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Collector is a prometheus.Collector that gathers textback metrics at
// scrape time.
type Collector struct {
	dispatcher DispatchStatsProvider
	limiter    LimiterSizeProvider
	messages   MessageCounter
	tenants    TenantCounter
	startTime  time.Time

	// Metric descriptors.
	dispatchEnqueuedDesc  *prometheus.Desc
	dispatchCompletedDesc *prometheus.Desc
	dispatchFailedDesc    *prometheus.Desc
	dispatchDroppedDesc   *prometheus.Desc
	dispatchQueueDesc     *prometheus.Desc
	limiterKeysDesc       *prometheus.Desc
	repliesTotalDesc      *prometheus.Desc
	tenantsDesc           *prometheus.Desc
	uptimeDesc            *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(
	dispatcher DispatchStatsProvider,
	limiter LimiterSizeProvider,
	messages MessageCounter,
	tenants TenantCounter,
	startTime time.Time,
) *Collector {
	return &Collector{
		dispatcher: dispatcher,
		limiter:    limiter,
		messages:   messages,
		tenants:    tenants,
		startTime:  startTime,

		dispatchEnqueuedDesc: prometheus.NewDesc(
			"textback_dispatch_tasks_enqueued_total",
			"Total side-effect tasks accepted by the dispatcher",
			nil, nil,
		),
		dispatchCompletedDesc: prometheus.NewDesc(
			"textback_dispatch_tasks_completed_total",
			"Total side-effect tasks that ran to completion",
			nil, nil,
		),
		dispatchFailedDesc: prometheus.NewDesc(
			"textback_dispatch_tasks_failed_total",
			"Total side-effect tasks that failed or panicked",
			nil, nil,
		),
		dispatchDroppedDesc: prometheus.NewDesc(
			"textback_dispatch_tasks_dropped_total",
			"Total side-effect tasks dropped under queue saturation",
			nil, nil,
		),
		dispatchQueueDesc: prometheus.NewDesc(
			"textback_dispatch_queue_length",
			"Side-effect tasks currently queued",
			nil, nil,
		),
		limiterKeysDesc: prometheus.NewDesc(
			"textback_ratelimit_tracked_keys",
			"Caller keys currently tracked by the rate limiter",
			nil, nil,
		),
		repliesTotalDesc: prometheus.NewDesc(
			"textback_replies_total",
			"Total text-back replies recorded, by fallback stage",
			[]string{"stage"}, nil,
		),
		tenantsDesc: prometheus.NewDesc(
			"textback_tenants",
			"Number of tenant records in the directory",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"textback_uptime_seconds",
			"Seconds since the textback process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dispatchEnqueuedDesc
	ch <- c.dispatchCompletedDesc
	ch <- c.dispatchFailedDesc
	ch <- c.dispatchDroppedDesc
	ch <- c.dispatchQueueDesc
	ch <- c.limiterKeysDesc
	ch <- c.repliesTotalDesc
	ch <- c.tenantsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.dispatcher != nil {
		stats := c.dispatcher.Stats()
		ch <- prometheus.MustNewConstMetric(c.dispatchEnqueuedDesc, prometheus.CounterValue, float64(stats.Enqueued))
		ch <- prometheus.MustNewConstMetric(c.dispatchCompletedDesc, prometheus.CounterValue, float64(stats.Completed))
		ch <- prometheus.MustNewConstMetric(c.dispatchFailedDesc, prometheus.CounterValue, float64(stats.Failed))
		ch <- prometheus.MustNewConstMetric(c.dispatchDroppedDesc, prometheus.CounterValue, float64(stats.Dropped))
		ch <- prometheus.MustNewConstMetric(c.dispatchQueueDesc, prometheus.GaugeValue, float64(stats.QueueLen))
	}

	if c.limiter != nil {
		ch <- prometheus.MustNewConstMetric(
			c.limiterKeysDesc, prometheus.GaugeValue,
			float64(c.limiter.Len()),
		)
	}

	// Reply counters by fallback stage.
	if c.messages != nil {
		counts, err := c.messages.CountByStage(ctx)
		if err != nil {
			slog.Error("metrics: failed to count replies by stage", "error", err)
		} else {
			for stage, count := range counts {
				ch <- prometheus.MustNewConstMetric(
					c.repliesTotalDesc, prometheus.CounterValue,
					float64(count), stage,
				)
			}
		}
	}

	if c.tenants != nil {
		count, err := c.tenants.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count tenants", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.tenantsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
