package utils

import (
	"testing"
	"time"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	// Compile-time smoke test: scripts should be initialized.
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestRedisConfigDefaults(t *testing.T) {
	got := RedisConfig{}.withDefaults()
	if got.DialTimeout != 3*time.Second || got.PoolSize != 20 {
		t.Fatalf("redis defaults = %v/%d", got.DialTimeout, got.PoolSize)
	}
	if got.PingTimeout != 2*time.Second {
		t.Fatalf("ping timeout default = %v", got.PingTimeout)
	}
}
