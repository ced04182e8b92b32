package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the dialer process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Dialer     DialerConfig
	Vapi       VapiConfig
	Compliance ComplianceConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// DialerConfig controls the campaign scheduling loop.
// Duration env vars are optional; defaults applied in Validate().
type DialerConfig struct {
	// TickInterval is the scheduler pass interval.
	TickInterval time.Duration

	// LeaseTTL bounds a campaign lease. It must exceed the tick interval so
	// a healthy holder renews its lease before expiry.
	LeaseTTL time.Duration

	// DispatchConcurrency caps concurrent call placements process-wide.
	DispatchConcurrency int

	// DispatchDelay is the fixed pause between consecutive dispatches
	// within one scheduler pass.
	DispatchDelay time.Duration

	// LineSpacing is the minimum interval between two dispatches on the
	// same phone line.
	LineSpacing time.Duration

	// SweepInterval and SweepTimeout control stale-work reclamation:
	// attempts stuck in a non-terminal state longer than SweepTimeout are
	// force-failed.
	SweepInterval time.Duration
	SweepTimeout  time.Duration
}

type VapiConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	QualifyURL    string
}

// ComplianceConfig controls the pre-dial gatekeeper. An empty registry URL
// disables the external check; the internal suppression list still applies.
type ComplianceConfig struct {
	RegistryURL    string
	RegistryAPIKey string

	// MaxDailyAttempts caps dial attempts per lead per campaign in 24h.
	MaxDailyAttempts int
	// MaxMonthlyContacts caps contacts per number across campaigns in 30d.
	MaxMonthlyContacts int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")

	c.Dialer.TickInterval = mustDuration("DIALER_TICK_INTERVAL")
	c.Dialer.LeaseTTL = mustDuration("DIALER_LEASE_TTL")
	c.Dialer.DispatchConcurrency = optInt("DIALER_DISPATCH_CONCURRENCY")
	c.Dialer.DispatchDelay = mustDuration("DIALER_DISPATCH_DELAY")
	c.Dialer.LineSpacing = mustDuration("DIALER_LINE_SPACING")
	c.Dialer.SweepInterval = mustDuration("DIALER_SWEEP_INTERVAL")
	c.Dialer.SweepTimeout = mustDuration("DIALER_SWEEP_TIMEOUT")

	c.Vapi.BaseURL = strings.TrimSpace(os.Getenv("VAPI_BASE_URL"))
	c.Vapi.APIKey = os.Getenv("VAPI_API_KEY")
	c.Vapi.WebhookSecret = os.Getenv("VAPI_WEBHOOK_SECRET")
	c.Vapi.QualifyURL = strings.TrimSpace(os.Getenv("QUALIFY_URL"))

	c.Compliance.RegistryURL = strings.TrimSpace(os.Getenv("DNC_REGISTRY_URL"))
	c.Compliance.RegistryAPIKey = os.Getenv("DNC_REGISTRY_API_KEY")
	c.Compliance.MaxDailyAttempts = optInt("COMPLIANCE_MAX_DAILY_ATTEMPTS")
	c.Compliance.MaxMonthlyContacts = optInt("COMPLIANCE_MAX_MONTHLY_CONTACTS")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Vapi.WebhookSecret == "" {
			errs = append(errs, errors.New("VAPI_WEBHOOK_SECRET is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Vapi.BaseURL == "" {
		errs = append(errs, errors.New("VAPI_BASE_URL is required"))
	}

	if c.Dialer.TickInterval <= 0 {
		c.Dialer.TickInterval = time.Minute
	}
	if c.Dialer.LeaseTTL <= 0 {
		c.Dialer.LeaseTTL = 2 * time.Minute
	}
	if c.Dialer.LeaseTTL <= c.Dialer.TickInterval {
		errs = append(errs, errors.New("DIALER_LEASE_TTL must be greater than DIALER_TICK_INTERVAL"))
	}
	if c.Dialer.DispatchConcurrency <= 0 {
		c.Dialer.DispatchConcurrency = 3
	}
	if c.Dialer.DispatchDelay <= 0 {
		c.Dialer.DispatchDelay = 2 * time.Second
	}
	if c.Dialer.LineSpacing <= 0 {
		c.Dialer.LineSpacing = 30 * time.Second
	}
	if c.Dialer.SweepInterval <= 0 {
		c.Dialer.SweepInterval = 10 * time.Minute
	}
	if c.Dialer.SweepTimeout <= 0 {
		c.Dialer.SweepTimeout = 30 * time.Minute
	}

	if c.Compliance.MaxDailyAttempts <= 0 {
		c.Compliance.MaxDailyAttempts = 3
	}
	if c.Compliance.MaxMonthlyContacts <= 0 {
		c.Compliance.MaxMonthlyContacts = 3
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
