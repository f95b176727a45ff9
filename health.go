package pgkit

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents the pool health status
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	PoolStats PoolStats     `json:"pool_stats"`
}

// PoolStats contains connection pool statistics
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	MaxIdleClosed      int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64         `json:"max_lifetime_closed"`
}

// Health performs a health check with detailed status. An uninitialized or
// closed pool reports unhealthy with the lifecycle error.
func (p *Pool) Health(ctx context.Context) HealthStatus {
	start := time.Now()

	err := p.Ping(ctx)
	latency := time.Since(start)

	status := HealthStatus{
		Healthy:   err == nil,
		Latency:   latency,
		PoolStats: PoolStatsFromSQL(p.Stats()),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// IsHealthy returns true if the database is reachable
func (p *Pool) IsHealthy(ctx context.Context) bool {
	return p.Ping(ctx) == nil
}

// WaitForHealthy pings until the database answers, the context ends, or
// the pool leaves the initialized state. Init never validates connectivity,
// so this is the startup barrier for callers that need one. An interval
// of zero or less polls every second.
func (p *Pool) WaitForHealthy(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := p.Ping(ctx)
		if err == nil {
			return nil
		}
		if IsNotInitialized(err) || IsPoolClosed(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return wrapError(ctx.Err(), "WaitForHealthy")
		case <-ticker.C:
		}
	}
}

// PoolStatsFromSQL converts sql.DBStats to PoolStats
func PoolStatsFromSQL(stats sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}
