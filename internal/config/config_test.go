package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	c := Config{}
	c.App.Env = "local"
	c.App.Port = 8080
	c.DB.Host = "localhost"
	c.DB.Port = 5432
	c.DB.User = "dialer"
	c.DB.Name = "dialer"
	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Auth.JWTSecret = "secret"
	c.Vapi.BaseURL = "https://api.vapi.ai"
	return c
}

func TestConfig_ValidateAppliesDialerDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Dialer.TickInterval != time.Minute {
		t.Fatalf("expected 1m tick default, got %v", c.Dialer.TickInterval)
	}
	if c.Dialer.LeaseTTL != 2*time.Minute {
		t.Fatalf("expected 2m lease default, got %v", c.Dialer.LeaseTTL)
	}
	if c.Dialer.DispatchConcurrency != 3 {
		t.Fatalf("expected concurrency 3, got %d", c.Dialer.DispatchConcurrency)
	}
	if c.Dialer.LineSpacing != 30*time.Second {
		t.Fatalf("expected 30s line spacing, got %v", c.Dialer.LineSpacing)
	}
	if c.Dialer.SweepTimeout != 30*time.Minute {
		t.Fatalf("expected 30m sweep timeout, got %v", c.Dialer.SweepTimeout)
	}
	if c.Compliance.MaxDailyAttempts != 3 || c.Compliance.MaxMonthlyContacts != 3 {
		t.Fatalf("expected frequency cap defaults 3/3, got %d/%d",
			c.Compliance.MaxDailyAttempts, c.Compliance.MaxMonthlyContacts)
	}
}

func TestConfig_LeaseMustExceedTick(t *testing.T) {
	c := validConfig()
	c.Dialer.TickInterval = 5 * time.Minute
	c.Dialer.LeaseTTL = time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when lease TTL <= tick interval")
	}
}

func TestConfig_MissingRequired(t *testing.T) {
	c := validConfig()
	c.DB.Host = ""
	c.Auth.JWTSecret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing DB_HOST and JWT_SECRET")
	}
}

func TestConfig_ProductionRequiresExplicitSSL(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "dialer"
	c.Auth.JWTAudience = "dialer-api"
	c.Vapi.WebhookSecret = "whsec"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error: DB_SSLMODE required in production")
	}
	c.DB.SSLMode = "require"
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
