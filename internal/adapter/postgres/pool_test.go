package postgres

import (
	"testing"
	"time"

	"github.com/heartmarshall/circulation-backend/internal/config"
)

func TestPoolConfig_AppliesSettings(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		DSN:               "postgres://u:p@localhost:5432/circulation",
		MaxConns:          12,
		MinConns:          3,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   10 * time.Minute,
		HealthCheckPeriod: 15 * time.Second,
		ConnectTimeout:    2 * time.Second,
		ApplicationName:   "circulation-test",
	}

	got, err := PoolConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MaxConns != 12 || got.MinConns != 3 {
		t.Errorf("conns = %d/%d, want 12/3", got.MaxConns, got.MinConns)
	}
	if got.MaxConnLifetime != time.Hour || got.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("lifetimes = %v/%v", got.MaxConnLifetime, got.MaxConnIdleTime)
	}
	if got.HealthCheckPeriod != 15*time.Second {
		t.Errorf("health_check_period = %v, want 15s", got.HealthCheckPeriod)
	}
	if got.ConnConfig.ConnectTimeout != 2*time.Second {
		t.Errorf("connect_timeout = %v, want 2s", got.ConnConfig.ConnectTimeout)
	}
	if name := got.ConnConfig.RuntimeParams["application_name"]; name != "circulation-test" {
		t.Errorf("application_name = %q", name)
	}
}

func TestPoolConfig_ZeroKeepsDefaults(t *testing.T) {
	t.Parallel()

	got, err := PoolConfig(config.DatabaseConfig{DSN: "postgres://u:p@localhost:5432/circulation"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MaxConns <= 0 {
		t.Errorf("max_conns = %d, want pgx default", got.MaxConns)
	}
	if got.HealthCheckPeriod != time.Minute {
		t.Errorf("health_check_period = %v, want pgx default 1m", got.HealthCheckPeriod)
	}
}

func TestPoolConfig_BadDSN(t *testing.T) {
	t.Parallel()

	if _, err := PoolConfig(config.DatabaseConfig{DSN: "postgres://%zz"}); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}
