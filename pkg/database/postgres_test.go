package database

import (
	"strings"
	"testing"
	"time"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := &PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "ledger",
		Password: "secret",
		Database: "event_ledger",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	for _, part := range []string{"host=db.internal", "port=5433", "user=ledger", "dbname=event_ledger", "sslmode=require"} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN() = %q, missing %q", dsn, part)
		}
	}
}

func TestPostgresConfig_RetryConfig(t *testing.T) {
	cfg := &PostgresConfig{
		MaxRetries:    7,
		RetryInterval: 250 * time.Millisecond,
	}

	rc := cfg.retryConfig()
	if rc.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", rc.MaxRetries)
	}
	if rc.InitialInterval != 250*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 250ms", rc.InitialInterval)
	}
	if rc.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", rc.Multiplier)
	}
}
