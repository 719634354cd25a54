package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const DefaultBaseURL = "https://services.leadconnectorhq.com"

type Config struct {
	// external platform
	BaseURL               string        `envconfig:"GHL_BASE_URL" default:"https://services.leadconnectorhq.com"`
	APIVersion            string        `envconfig:"GHL_API_VERSION" default:"2021-04-15"`
	APIKey                string        `envconfig:"GHL_API_KEY"`
	DefaultLocationID     string        `envconfig:"GHL_LOCATION_ID"`
	DefaultAssignedUserID string        `envconfig:"GHL_ASSIGNED_USER_ID"`
	Timeout               time.Duration `envconfig:"GHL_TIMEOUT" default:"15s"`

	// local
	DatabaseURL string `envconfig:"DATABASE_URL" default:"memory://"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	TimeZone    string `envconfig:"TIME_ZONE" default:"UTC"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// API auth is off when empty; the webhook is always public
	JWTSecret string `envconfig:"API_JWT_SECRET"`

	WebhookRateRPS   float64 `envconfig:"WEBHOOK_RATE_RPS" default:"20"`
	WebhookRateBurst int     `envconfig:"WEBHOOK_RATE_BURST" default:"40"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	Location *time.Location `ignored:"true"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	tz := strings.TrimSpace(c.TimeZone)
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("config: invalid TIME_ZONE %q: %w", tz, err)
	}
	c.Location = loc
	return nil
}

// HasCredentials reports whether outbound platform calls can be made.
func (c *Config) HasCredentials() bool {
	return c.APIKey != ""
}

// ResolveLocation picks the explicit value, else the configured default.
func (c *Config) ResolveLocation(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return c.DefaultLocationID
}

func (c *Config) ResolveAssignedUser(explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return c.DefaultAssignedUserID
}
