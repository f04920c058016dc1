package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	Storage     string
	LogLevel    string
	Environment string
	HTTPAddr    string

	AutopayTickInterval   time.Duration
	ScheduledTickInterval time.Duration
	TickTimeout           time.Duration

	GatewayTimeout     time.Duration
	GatewayFailureRate float64
	// GatewayDeclinePhones are mobile-money numbers the mock gateway always declines.
	GatewayDeclinePhones []string

	DefaultTimezone  string
	Currency         string
	ManualPaymentURL string

	AlertsEnabled    bool
	TelegramToken    string
	TenantTelegramID int64
	DefaultTenantID  string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
	AlertEmailTo string
}

// TelegramEnabled reports whether the bot should be started.
func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// EmailAlertsEnabled reports whether SMTP alerts are configured.
func (c *AppConfig) EmailAlertsEnabled() bool {
	return c.SMTPHost != "" && c.AlertEmailTo != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.Storage = strings.ToLower(getString("STORAGE", StoragePostgres))
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE %q: want %s or %s", cfg.Storage, StoragePostgres, StorageMemory)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.Storage == StoragePostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(getString("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getString("ENVIRONMENT", "development"))
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")

	if cfg.AutopayTickInterval, err = getMinutes("AUTOPAY_TICK_MINUTES", 60); err != nil {
		return nil, err
	}
	if cfg.ScheduledTickInterval, err = getMinutes("SCHEDULED_TICK_MINUTES", 60); err != nil {
		return nil, err
	}
	if cfg.TickTimeout, err = getSeconds("TICK_TIMEOUT_SECONDS", 300); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = getSeconds("GATEWAY_TIMEOUT_SECONDS", 30); err != nil {
		return nil, err
	}

	rateStr := getString("GATEWAY_FAILURE_RATE", "0")
	cfg.GatewayFailureRate, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.GatewayFailureRate < 0 || cfg.GatewayFailureRate > 1 {
		return nil, fmt.Errorf("invalid GATEWAY_FAILURE_RATE %q: must be between 0 and 1", rateStr)
	}
	for _, phone := range strings.Split(os.Getenv("GATEWAY_DECLINE_PHONES"), ",") {
		if phone = strings.TrimSpace(phone); phone != "" {
			cfg.GatewayDeclinePhones = append(cfg.GatewayDeclinePhones, phone)
		}
	}

	cfg.DefaultTimezone = getString("DEFAULT_TIMEZONE", "Africa/Accra")
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}
	cfg.Currency = getString("CURRENCY", "GHS")
	cfg.ManualPaymentURL = getString("MANUAL_PAYMENT_URL", "/payments/manual")

	alertsStr := getString("ALERTS_ENABLED", "true")
	cfg.AlertsEnabled, err = strconv.ParseBool(alertsStr)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERTS_ENABLED: %w", err)
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.DefaultTenantID = os.Getenv("DEFAULT_TENANT_ID")
	if cfg.TelegramToken != "" {
		tenantChatStr := os.Getenv("TENANT_TELEGRAM_ID")
		if tenantChatStr == "" {
			return nil, fmt.Errorf("TENANT_TELEGRAM_ID is not set")
		}
		cfg.TenantTelegramID, err = strconv.ParseInt(tenantChatStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TENANT_TELEGRAM_ID: %w", err)
		}
		if cfg.DefaultTenantID == "" {
			return nil, fmt.Errorf("DEFAULT_TENANT_ID is not set")
		}
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisChannel = getString("REDIS_CHANNEL", "rent:notifications")

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	portStr := getString("SMTP_PORT", "587")
	cfg.SMTPPort, err = strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SenderEmail = getString("SENDER_EMAIL", cfg.SMTPUsername)
	cfg.AlertEmailTo = os.Getenv("ALERT_EMAIL_TO")

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

func getMinutes(key string, fallback int) (time.Duration, error) {
	n, err := getPositiveInt(key, fallback)
	return time.Duration(n) * time.Minute, err
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	n, err := getPositiveInt(key, fallback)
	return time.Duration(n) * time.Second, err
}
