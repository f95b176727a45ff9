package pgkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ezlib/pgkit/hooks"
)

type poolState int

const (
	poolStateNew poolState = iota
	poolStateReady
	poolStateClosed
)

// Pool manages a connection pool and hands out transactional sessions.
// The lifecycle is one-way: NewPool creates it unconnected, Init builds the
// pool, Close disposes it. Sessions can only be leased in between.
type Pool struct {
	mu     sync.RWMutex
	state  poolState
	db     *bun.DB
	sqlDB  *sql.DB
	config PoolConfig
}

// NewPool creates an uninitialized pool from the given configuration.
// No connection attempt is made until Init.
func NewPool(cfg PoolConfig) *Pool {
	cfg.applyDefaults()
	return &Pool{config: cfg}
}

// Init builds the connection pool from the configuration. It does not
// validate connectivity: the server may be down and Init still succeeds,
// since connections are established lazily on first use. Use Ping, Health,
// or WaitForHealthy for an explicit reachability check.
//
// Init is idempotent on an initialized pool and fails on a closed one.
func (p *Pool) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case poolStateReady:
		return nil
	case poolStateClosed:
		return &Error{Code: CodePoolClosed, Message: "pool is closed", Op: "Init"}
	}

	if p.config.User == "" || p.config.Database == "" {
		return &Error{
			Code:    CodeConnectionFailed,
			Message: "database user and name are required",
			Op:      "Init",
		}
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(p.config.connString()),
		pgdriver.WithDialTimeout(p.config.DialTimeout),
		pgdriver.WithReadTimeout(p.config.ReadTimeout),
		pgdriver.WithWriteTimeout(p.config.WriteTimeout),
	)

	return p.initLocked(sql.OpenDB(connector))
}

// InitWithDB builds the pool around an existing database handle instead of
// opening one from the configuration. Useful for tests (sqlmock) and custom
// drivers. The same lifecycle rules as Init apply.
func (p *Pool) InitWithDB(sqlDB *sql.DB) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case poolStateReady:
		return nil
	case poolStateClosed:
		return &Error{Code: CodePoolClosed, Message: "pool is closed", Op: "Init"}
	}

	return p.initLocked(sqlDB)
}

func (p *Pool) initLocked(sqlDB *sql.DB) error {
	cfg := p.config

	overflow := cfg.MaxOverflow
	if overflow < 0 {
		overflow = 0
	}

	// PoolSize connections stay pooled; overflow connections above the idle
	// cap are closed as soon as they are released.
	sqlDB.SetMaxOpenConns(cfg.PoolSize + overflow)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)
	sqlDB.SetConnMaxLifetime(cfg.ConnRecycle)

	bunDB := bun.NewDB(sqlDB, pgdialect.New())

	if cfg.Logger != nil && (cfg.LogQueries || cfg.SlowQueryThreshold > 0) {
		bunDB.AddQueryHook(hooks.NewLoggerHook(cfg.Logger, cfg.LogQueries, cfg.SlowQueryThreshold))
	}
	if cfg.MetricsRegistry != nil {
		hook, err := hooks.NewMetricsHook(cfg.MetricsRegistry)
		if err != nil {
			return fmt.Errorf("pgkit: failed to create metrics hook: %w", err)
		}
		bunDB.AddQueryHook(hook)

		if err := cfg.MetricsRegistry.Register(hooks.NewPoolStatsCollector(sqlDB.Stats)); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return fmt.Errorf("pgkit: failed to register pool stats collector: %w", err)
			}
		}
	}
	if cfg.Tracer != nil {
		bunDB.AddQueryHook(hooks.NewTracingHook(cfg.Tracer))
	}

	p.sqlDB = sqlDB
	p.db = bunDB
	p.state = poolStateReady

	if cfg.Logger != nil {
		cfg.Logger.Info("connection pool created",
			slog.String("host", cfg.Host),
			slog.Int("port", cfg.Port),
			slog.String("database", cfg.Database),
			slog.Int("pool_size", cfg.PoolSize),
			slog.Int("max_overflow", cfg.MaxOverflow),
		)
	}

	return nil
}

// guard returns the live bun.DB or the lifecycle error for the current state
func (p *Pool) guard(op string) (*bun.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch p.state {
	case poolStateNew:
		return nil, &Error{Code: CodeNotInitialized, Message: "pool not initialized, call Init first", Op: op}
	case poolStateClosed:
		return nil, &Error{Code: CodePoolClosed, Message: "pool is closed", Op: op}
	}
	return p.db, nil
}

// GetSession leases a dedicated connection from the pool and opens a
// transaction on it. The lease wait is bounded by AcquireTimeout; when the
// pool stays exhausted past it, GetSession fails with ErrPoolExhausted.
// The caller owns the session and must Close it.
func (p *Pool) GetSession(ctx context.Context) (*Session, error) {
	return p.GetSessionTx(ctx, DefaultTxOptions())
}

// GetSessionTx leases a session with custom transaction options
func (p *Pool) GetSessionTx(ctx context.Context, opts TxOptions) (*Session, error) {
	db, err := p.guard("GetSession")
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	conn, err := db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &Error{
				Code:    CodePoolExhausted,
				Message: fmt.Sprintf("no connection available within %s", p.config.AcquireTimeout),
				Op:      "GetSession",
				Cause:   err,
			}
		}
		return nil, wrapError(err, "GetSession")
	}

	// The transaction is tied to the caller's context, not the acquire one:
	// cancelling ctx rolls the transaction back at the driver level.
	bunTx, err := conn.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.Isolation,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		_ = conn.Close()
		return nil, wrapError(err, "GetSession.Begin")
	}

	seq := int64(0)
	return &Session{
		Tx:           bunTx,
		conn:         conn,
		pool:         p,
		log:          p.config.Logger,
		txOpts:       opts,
		savepointSeq: &seq,
	}, nil
}

// Close disposes the pool. Idle connections are closed immediately, leased
// ones as their sessions close. Close is idempotent; every other operation
// on a closed pool fails with ErrPoolClosed.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == poolStateClosed {
		return nil
	}

	wasReady := p.state == poolStateReady
	p.state = poolStateClosed

	if !wasReady {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return wrapError(err, "Close")
	}
	if p.config.Logger != nil {
		p.config.Logger.Info("connection pool closed",
			slog.String("database", p.config.Database),
		)
	}
	return nil
}

// Ping verifies the database is reachable
func (p *Pool) Ping(ctx context.Context) error {
	db, err := p.guard("Ping")
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return wrapError(err, "Ping")
	}
	return nil
}

// Stats returns connection pool statistics. Zero before Init.
func (p *Pool) Stats() sql.DBStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.sqlDB == nil {
		return sql.DBStats{}
	}
	return p.sqlDB.Stats()
}

// DB returns the underlying bun.DB for direct access. Nil before Init.
func (p *Pool) DB() *bun.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Config returns the normalized configuration
func (p *Pool) Config() PoolConfig {
	return p.config
}
