package envconf

import (
	"errors"
	"testing"
	"time"
)

type serviceConfig struct {
	Host       string        `env:"SVC_HOST"`
	Port       int           `env:"SVC_PORT"`
	Debug      bool          `env:"SVC_DEBUG"`
	Timeout    time.Duration `env:"SVC_TIMEOUT"`
	Ratio      float64       `env:"SVC_RATIO"`
	Tags       []string      `env:"SVC_TAGS"`
	Region     *string       `env:"SVC_REGION"`
	MaxRetries *int          `env:"SVC_MAX_RETRIES"`
	Skipped    string        `env:"-"`
}

func TestLoad(t *testing.T) {
	t.Setenv("SVC_HOST", "db.internal")
	t.Setenv("SVC_PORT", "5432")
	t.Setenv("SVC_DEBUG", "true")
	t.Setenv("SVC_TIMEOUT", "45s")
	t.Setenv("SVC_RATIO", "0.75")
	t.Setenv("SVC_TAGS", "alpha, beta,gamma")
	t.Setenv("SVC_REGION", "eu-west-1")

	var cfg serviceConfig
	if err := Load(&cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Host != "db.internal" {
		t.Errorf("Expected host db.internal, got %s", cfg.Host)
	}
	if cfg.Port != 5432 {
		t.Errorf("Expected port 5432, got %d", cfg.Port)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be true")
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s, got %s", cfg.Timeout)
	}
	if cfg.Ratio != 0.75 {
		t.Errorf("Expected ratio 0.75, got %f", cfg.Ratio)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[1] != "beta" {
		t.Errorf("Expected 3 trimmed tags, got %v", cfg.Tags)
	}
	if cfg.Region == nil || *cfg.Region != "eu-west-1" {
		t.Errorf("Expected region eu-west-1, got %v", cfg.Region)
	}
	if cfg.MaxRetries != nil {
		t.Errorf("Expected MaxRetries to stay nil, got %v", *cfg.MaxRetries)
	}
}

func TestLoadDefaultName(t *testing.T) {
	type cfg struct {
		DatabaseURL string
		HTTPPort    int
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("HTTP_PORT", "8080")

	var c cfg
	if err := Load(&c); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.DatabaseURL != "postgres://localhost/app" {
		t.Errorf("Expected DATABASE_URL to map onto DatabaseURL, got %s", c.DatabaseURL)
	}
	if c.HTTPPort != 8080 {
		t.Errorf("Expected port 8080, got %d", c.HTTPPort)
	}
}

func TestLoadMissing(t *testing.T) {
	type cfg struct {
		User     string  `env:"ENVCONF_TEST_USER"`
		Password string  `env:"ENVCONF_TEST_PASSWORD"`
		Optional *string `env:"ENVCONF_TEST_OPTIONAL"`
	}

	// Set but empty counts as absent
	t.Setenv("ENVCONF_TEST_PASSWORD", "")

	var c cfg
	err := Load(&c)
	if err == nil {
		t.Fatal("Expected error for missing variables")
	}

	var missing *MissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingError, got %T", err)
	}
	if len(missing.Vars) != 2 {
		t.Fatalf("Expected 2 missing vars, got %v", missing.Vars)
	}
	if missing.Vars[0] != "ENVCONF_TEST_USER" || missing.Vars[1] != "ENVCONF_TEST_PASSWORD" {
		t.Errorf("Expected both missing vars reported, got %v", missing.Vars)
	}
}

func TestLoadParseError(t *testing.T) {
	type cfg struct {
		Port int `env:"ENVCONF_TEST_PORT"`
	}

	t.Setenv("ENVCONF_TEST_PORT", "not-a-number")

	var c cfg
	err := Load(&c)
	if err == nil {
		t.Fatal("Expected parse error")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %T", err)
	}
	if parseErr.Var != "ENVCONF_TEST_PORT" {
		t.Errorf("Expected var ENVCONF_TEST_PORT, got %s", parseErr.Var)
	}
	if parseErr.Value != "not-a-number" {
		t.Errorf("Expected offending value in error, got %s", parseErr.Value)
	}
}

func TestLoadDuration(t *testing.T) {
	type cfg struct {
		Recycle time.Duration `env:"ENVCONF_TEST_RECYCLE"`
	}

	t.Setenv("ENVCONF_TEST_RECYCLE", "30m")

	var c cfg
	if err := Load(&c); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Recycle != 30*time.Minute {
		t.Errorf("Expected 30m, got %s", c.Recycle)
	}

	// Bare integers are not durations
	t.Setenv("ENVCONF_TEST_RECYCLE", "1800")
	if err := Load(&c); err == nil {
		t.Error("Expected parse error for bare integer duration")
	}
}

func TestLoadInvalidTarget(t *testing.T) {
	var s string
	if err := Load(&s); err == nil {
		t.Error("Expected error for non-struct target")
	}

	var c serviceConfig
	if err := Load(c); err == nil {
		t.Error("Expected error for non-pointer target")
	}
}
