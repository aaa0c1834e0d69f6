// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq worker and scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetOutreachRunCron() string
}

// ChannelConfig provides settings for the outbound messaging channel.
type ChannelConfig interface {
	GetChannelURL() string
	GetChannelAPIKey() string
	GetChannelDeviceID() string
}

// TaggingConfig provides settings for the contact tagging provider.
type TaggingConfig interface {
	GetBrevoAPIKey() string
	GetBrevoListID() int
	IsTaggingEnabled() bool
}

// OutreachConfig provides tunables for the outreach run engine.
type OutreachConfig interface {
	GetMaxMessagesPerRun() int
	GetMaxMessagesPerLeadWindow() int
	GetThrottleWindow() time.Duration
	GetDedupLookback() time.Duration
	GetPaymentLookback() time.Duration
	GetReservationGrace() time.Duration
	GetTemplatesPath() string
}

// AlertConfig provides settings for operator alert emails.
type AlertConfig interface {
	GetAlertsEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertToAddresses() []string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	OutreachRunCron  string

	ChannelURL      string
	ChannelAPIKey   string
	ChannelDeviceID string

	BrevoAPIKey string
	BrevoListID int

	MaxMessagesPerRun        int
	MaxMessagesPerLeadWindow int
	ThrottleWindow           time.Duration
	DedupLookback            time.Duration
	PaymentLookback          time.Duration
	ReservationGrace         time.Duration
	TemplatesPath            string

	AlertsEnabled    bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	AlertFromAddress string
	AlertToAddresses []string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetOutreachRunCron() string { return c.OutreachRunCron }

// ChannelConfig implementation
func (c *Config) GetChannelURL() string      { return c.ChannelURL }
func (c *Config) GetChannelAPIKey() string   { return c.ChannelAPIKey }
func (c *Config) GetChannelDeviceID() string { return c.ChannelDeviceID }

// TaggingConfig implementation
func (c *Config) GetBrevoAPIKey() string { return c.BrevoAPIKey }
func (c *Config) GetBrevoListID() int    { return c.BrevoListID }
func (c *Config) IsTaggingEnabled() bool { return c.BrevoAPIKey != "" }

// OutreachConfig implementation
func (c *Config) GetMaxMessagesPerRun() int          { return c.MaxMessagesPerRun }
func (c *Config) GetMaxMessagesPerLeadWindow() int   { return c.MaxMessagesPerLeadWindow }
func (c *Config) GetThrottleWindow() time.Duration   { return c.ThrottleWindow }
func (c *Config) GetDedupLookback() time.Duration    { return c.DedupLookback }
func (c *Config) GetPaymentLookback() time.Duration  { return c.PaymentLookback }
func (c *Config) GetReservationGrace() time.Duration { return c.ReservationGrace }
func (c *Config) GetTemplatesPath() string           { return c.TemplatesPath }

// AlertConfig implementation
func (c *Config) GetAlertsEnabled() bool        { return c.AlertsEnabled }
func (c *Config) GetSMTPHost() string           { return c.SMTPHost }
func (c *Config) GetSMTPPort() int              { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string       { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string       { return c.SMTPPassword }
func (c *Config) GetAlertFromAddress() string   { return c.AlertFromAddress }
func (c *Config) GetAlertToAddresses() []string { return c.AlertToAddresses }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("ALERT_SMTP_HOST", "")
	alertsEnabled := strings.EqualFold(getEnv("ALERTS_ENABLED", "true"), "true")

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		OutreachRunCron:  getEnv("OUTREACH_RUN_CRON", "*/15 * * * *"),

		ChannelURL:      getEnv("CHANNEL_URL", ""),
		ChannelAPIKey:   getEnv("CHANNEL_API_KEY", ""),
		ChannelDeviceID: getEnv("CHANNEL_DEVICE_ID", ""),

		BrevoAPIKey: getEnv("BREVO_API_KEY", ""),
		BrevoListID: mustInt(getEnv("BREVO_LIST_ID", "0")),

		MaxMessagesPerRun:        mustInt(getEnv("OUTREACH_MAX_PER_RUN", "50")),
		MaxMessagesPerLeadWindow: mustInt(getEnv("OUTREACH_MAX_PER_LEAD_7D", "3")),
		ThrottleWindow:           mustDuration(getEnv("OUTREACH_THROTTLE_WINDOW", "168h")),
		DedupLookback:            mustDuration(getEnv("OUTREACH_DEDUP_LOOKBACK", "168h")),
		PaymentLookback:          mustDuration(getEnv("OUTREACH_PAYMENT_LOOKBACK", "96h")),
		ReservationGrace:         mustDuration(getEnv("OUTREACH_RESERVATION_GRACE", "30m")),
		TemplatesPath:            getEnv("OUTREACH_TEMPLATES_PATH", "templates.yaml"),

		AlertsEnabled:    alertsEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		SMTPUsername:     getEnv("ALERT_SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
		AlertToAddresses: splitCSV(getEnv("ALERT_TO_ADDRESSES", "")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.MaxMessagesPerRun < 1 {
		return nil, fmt.Errorf("OUTREACH_MAX_PER_RUN must be at least 1")
	}
	if cfg.MaxMessagesPerLeadWindow < 1 {
		return nil, fmt.Errorf("OUTREACH_MAX_PER_LEAD_7D must be at least 1")
	}
	if cfg.ThrottleWindow <= 0 || cfg.DedupLookback <= 0 {
		return nil, fmt.Errorf("OUTREACH_THROTTLE_WINDOW and OUTREACH_DEDUP_LOOKBACK must be positive durations")
	}
	if cfg.AlertsEnabled && cfg.AlertFromAddress == "" {
		return nil, fmt.Errorf("ALERT_FROM_ADDRESS is required when alerts are enabled")
	}
	if cfg.AlertsEnabled && len(cfg.AlertToAddresses) == 0 {
		return nil, fmt.Errorf("ALERT_TO_ADDRESSES is required when alerts are enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
