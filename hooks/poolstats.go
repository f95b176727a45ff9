package hooks

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports connection pool statistics from a stats
// snapshot function, typically Pool.Stats. Stats are read at scrape time,
// so the collector stays current without its own bookkeeping.
type PoolStatsCollector struct {
	stats func() sql.DBStats

	maxOpen      *prometheus.Desc
	open         *prometheus.Desc
	inUse        *prometheus.Desc
	idle         *prometheus.Desc
	waitCount    *prometheus.Desc
	waitDuration *prometheus.Desc
}

// NewPoolStatsCollector creates a collector over the given snapshot
// function
func NewPoolStatsCollector(stats func() sql.DBStats) *PoolStatsCollector {
	return &PoolStatsCollector{
		stats: stats,
		maxOpen: prometheus.NewDesc(
			"pgkit_pool_max_open_connections",
			"Maximum number of open connections to the database",
			nil, nil,
		),
		open: prometheus.NewDesc(
			"pgkit_pool_open_connections",
			"Number of established connections, in use and idle",
			nil, nil,
		),
		inUse: prometheus.NewDesc(
			"pgkit_pool_in_use_connections",
			"Number of connections currently in use",
			nil, nil,
		),
		idle: prometheus.NewDesc(
			"pgkit_pool_idle_connections",
			"Number of idle connections",
			nil, nil,
		),
		waitCount: prometheus.NewDesc(
			"pgkit_pool_wait_count_total",
			"Total number of connections waited for",
			nil, nil,
		),
		waitDuration: prometheus.NewDesc(
			"pgkit_pool_wait_duration_seconds_total",
			"Total time blocked waiting for a new connection",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxOpen
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCount
	ch <- c.waitDuration
}

// Collect implements prometheus.Collector
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(s.MaxOpenConnections))
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, s.WaitDuration.Seconds())
}
