package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// PublicBaseURL is the externally reachable origin used to build
	// processor redirect and webhook URLs.
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required" validate:"required,url"`

	ReturnTokenSecret string `env:"RETURN_TOKEN_SECRET,required" validate:"required"`
	EncryptionKey     string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	// PaymentMock switches every processor adapter to its in-memory
	// implementation. Used in development and integration tests.
	PaymentMock bool `env:"PAYMENT_MOCK" envDefault:"false"`

	MollieAPIKey  string `env:"MOLLIE_API_KEY"`
	MollieAPIBase string `env:"MOLLIE_API_BASE" validate:"omitempty,url"`

	GooglePayMerchantID        string `env:"GOOGLE_PAY_MERCHANT_ID"`
	GooglePayGatewayMerchantID string `env:"GOOGLE_PAY_GATEWAY_MERCHANT_ID"`
	GooglePayGatewayAPIKey     string `env:"GOOGLE_PAY_GATEWAY_API_KEY"`
	GooglePayGatewayBase       string `env:"GOOGLE_PAY_GATEWAY_BASE" validate:"omitempty,url"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	// HandlerConfigFile optionally seeds per-shop handler configuration
	// from a YAML file at startup.
	HandlerConfigFile string `env:"HANDLER_CONFIG_FILE"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	baseURL := strings.TrimSpace(c.PublicBaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("PUBLIC_BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("PUBLIC_BASE_URL must use https outside local development")
	}

	if !c.PaymentMock {
		if strings.TrimSpace(c.StripeSecretKey) != "" && strings.TrimSpace(c.StripeWebhookSecret) == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
		}
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
