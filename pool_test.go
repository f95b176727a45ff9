package pgkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
)

func TestPool_Lifecycle(t *testing.T) {
	pool := NewPool(DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb"))

	if _, err := pool.GetSession(context.Background()); !IsNotInitialized(err) {
		t.Errorf("expected not-initialized error, got %v", err)
	}
	if err := pool.Ping(context.Background()); !IsNotInitialized(err) {
		t.Errorf("expected not-initialized error, got %v", err)
	}
	if pool.DB() != nil {
		t.Error("expected nil DB before Init")
	}
	if stats := pool.Stats(); stats.MaxOpenConnections != 0 {
		t.Error("expected zero stats before Init")
	}

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	mock.ExpectClose()

	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Errorf("second Init should be a no-op, got %v", err)
	}
	if pool.DB() == nil {
		t.Error("expected DB handle after Init")
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	if _, err := pool.GetSession(context.Background()); !IsPoolClosed(err) {
		t.Errorf("expected pool closed error, got %v", err)
	}
	if err := pool.Init(); !IsPoolClosed(err) {
		t.Errorf("expected pool closed error from Init, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPool_CloseUninitialized(t *testing.T) {
	pool := NewPool(DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb"))

	if err := pool.Close(); err != nil {
		t.Fatalf("Close on uninitialized pool failed: %v", err)
	}
	if err := pool.Init(); !IsPoolClosed(err) {
		t.Errorf("expected pool closed error, got %v", err)
	}
}

func TestInit_RequiredFields(t *testing.T) {
	pool := NewPool(PoolConfig{Host: "localhost"})

	err := pool.Init()
	if err == nil {
		t.Fatal("expected error without user and database")
	}
	code, _ := GetErrorCode(err)
	if code != CodeConnectionFailed {
		t.Errorf("expected CONNECTION_FAILED, got %s", code)
	}
}

func TestPool_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	mock.ExpectPing()

	pool := NewPool(DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb"))
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPool_Sizing(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	cfg := DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb")
	cfg.PoolSize = 3
	cfg.MaxOverflow = 2

	pool := NewPool(cfg)
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	defer pool.Close()

	if got := pool.Stats().MaxOpenConnections; got != 5 {
		t.Errorf("expected max open 5 (pool + overflow), got %d", got)
	}
}

func TestGetSession_PoolExhausted(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	mock.ExpectBegin()
	mock.ExpectRollback()

	cfg := DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb")
	cfg.PoolSize = 1
	cfg.MaxOverflow = -1
	cfg.AcquireTimeout = 50 * time.Millisecond

	pool := NewPool(cfg)
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	s, err := pool.GetSession(ctx)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	start := time.Now()
	_, err = pool.GetSession(ctx)
	if !IsPoolExhausted(err) {
		t.Fatalf("expected pool exhausted error, got %v", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("expected the lease wait to last the acquire timeout")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGetSession_CanceledContext(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	pool := NewPool(DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb"))
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.GetSession(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsPoolExhausted(err) {
		t.Error("a canceled caller must not look like pool exhaustion")
	}
}

func TestInitWithDB_Metrics(t *testing.T) {
	mockDB, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}

	reg := prometheus.NewRegistry()
	cfg := DefaultPoolConfig("localhost", 5432, "app", "secret", "appdb")
	cfg.MetricsRegistry = reg

	pool := NewPool(cfg)
	if err := pool.InitWithDB(mockDB); err != nil {
		t.Fatalf("InitWithDB failed: %v", err)
	}
	defer pool.Close()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "pgkit_pool_open_connections" {
			found = true
		}
	}
	if !found {
		t.Error("expected pool stats metrics to be registered")
	}
}

func TestPool_Config(t *testing.T) {
	pool := NewPool(PoolConfig{User: "app", Password: "secret", Database: "appdb"})

	got := pool.Config()
	if got.Host != "localhost" || got.Port != 5432 {
		t.Errorf("expected normalized config, got host=%s port=%d", got.Host, got.Port)
	}
	if got.PoolSize != 10 || got.MaxOverflow != 10 {
		t.Errorf("expected pool sizing defaults, got size=%d overflow=%d", got.PoolSize, got.MaxOverflow)
	}
}
