package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// mustTestClient builds a client that is never dialed; the validation paths
// under test reject their inputs before any command runs.
func mustTestClient() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "localhost:1"})
}

func TestRedisConfig_Defaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if got.DialTimeout != 3*time.Second || got.ReadTimeout != 2*time.Second || got.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected timeout defaults: %+v", got)
	}
	if got.PoolSize != 20 || got.PoolTimeout != 4*time.Second {
		t.Fatalf("unexpected pool defaults: %+v", got)
	}
}

func TestAcquireConcurrencyCap_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Minute); err == nil {
		t.Fatalf("expected error for nil client")
	}

	rdb := mustTestClient()
	cases := []struct {
		name  string
		key   string
		limit int
		ttl   time.Duration
	}{
		{"empty key", "", 1, time.Minute},
		{"zero limit", "k", 0, time.Minute},
		{"zero ttl", "k", 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := AcquireConcurrencyCap(ctx, rdb, tc.key, tc.limit, tc.ttl); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestReleaseConcurrencyCap_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if err := ReleaseConcurrencyCap(ctx, mustTestClient(), ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
