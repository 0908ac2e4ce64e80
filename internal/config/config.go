package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"PORT"`
	Env                 string        `mapstructure:"ENV"`
	DatabaseURL         string        `mapstructure:"DATABASE_URL"`
	DBMaxConns          int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns          int32         `mapstructure:"DB_MIN_CONNS"`
	DefaultClinic       string        `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins         []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS        float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst      int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit           string        `mapstructure:"BODY_LIMIT"`
	SessionSigningKey   string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionTTL          time.Duration `mapstructure:"SESSION_TTL"`
	EnforceCapabilities bool          `mapstructure:"ENFORCE_CAPABILITIES"`
	ClinicTimezone      string        `mapstructure:"CLINIC_TIMEZONE"`
	KafkaBrokers        []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic          string        `mapstructure:"KAFKA_TOPIC"`
	RemindersEnabled    bool          `mapstructure:"REMINDERS_ENABLED"`
	ReminderCron        string        `mapstructure:"REMINDER_CRON"`
	ReminderClinics     []string      `mapstructure:"REMINDER_CLINICS"`
	TLSEnabled          bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile         string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile          string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_CLINIC", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BODY_LIMIT", "SESSION_SIGNING_KEY", "SESSION_TTL", "ENFORCE_CAPABILITIES",
	"CLINIC_TIMEZONE", "KAFKA_BROKERS", "KAFKA_TOPIC", "REMINDERS_ENABLED",
	"REMINDER_CRON", "REMINDER_CLINICS", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from the process environment, falling back to a
// .env file in the working directory for anything the environment leaves unset.
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DEFAULT_CLINIC", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("ENFORCE_CAPABILITIES", false)
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("KAFKA_TOPIC", "clinic.appointments")
	v.SetDefault("REMINDERS_ENABLED", false)
	v.SetDefault("REMINDER_CRON", "0 18 * * *")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated lists arrive from the environment as a single string.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.ReminderClinics = splitList(v.GetString("REMINDER_CLINICS"))
	if len(cfg.ReminderClinics) == 0 {
		cfg.ReminderClinics = []string{cfg.DefaultClinic}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Appointment dates and times are wall
// clock values in this zone.
func (c *Config) Location() (*time.Location, error) {
	if c.ClinicTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// SigningKey decodes SESSION_SIGNING_KEY. It returns nil when the key is unset.
func (c *Config) SigningKey() ([]byte, error) {
	if c.SessionSigningKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SessionSigningKey)
	if err != nil {
		return nil, fmt.Errorf("SESSION_SIGNING_KEY is not valid hex: %w", err)
	}
	return key, nil
}

// Validate checks that the configuration is safe to run. Production requires
// a stable session signing key; development generates one per process.
func (c *Config) Validate() error {
	if c.IsProduction() && c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required in production")
	}
	if c.SessionSigningKey != "" {
		key, err := c.SigningKey()
		if err != nil {
			return err
		}
		if len(key) != 32 {
			return fmt.Errorf("SESSION_SIGNING_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive when RATE_LIMIT_RPS is set, got %d", c.RateLimitBurst)
	}
	if c.RemindersEnabled && c.ReminderCron == "" {
		return fmt.Errorf("REMINDER_CRON is required when REMINDERS_ENABLED is true")
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
