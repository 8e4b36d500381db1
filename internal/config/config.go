package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultWebhookURL is the n8n realty-agent workflow the proxy forwards to
// unless REALTY_WEBHOOK_URL overrides it.
const DefaultWebhookURL = "https://n8n-railway-custom-production-953e.up.railway.app/webhook/realty-agent"

type Webhook struct {
	URL               string        `validate:"required,url"`
	Param             string        `validate:"oneof=message contactMessage"`
	MaxAttempts       int           `validate:"min=1"`
	InitialBackoff    time.Duration `validate:"gt=0"`
	RetryClientErrors bool          // Whether 4xx responses are retried
}

type Proxy struct {
	Timeout            time.Duration `validate:"gt=0"` // Deadline for the upstream call behind /api/realty
	MaxAttempts        int           `validate:"min=1"`
	ProbeUpstream      bool          // Include an upstream probe in /healthz
	EnableWebhookTest  bool          // Mount the /api/webhook-test diagnostic route
	WebhookTestTimeout time.Duration `validate:"gt=0"`
}

type FakeN8N struct {
	FailFirstN      int           `validate:"min=0"` // Number of requests to fail initially
	ResponseDelayMS int           `validate:"min=0"` // Simulated response delay in milliseconds
	Port            string        `validate:"required"`
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	IdleTimeout     time.Duration // HTTP idle timeout
}

type Config struct {
	AppName     string `validate:"required"`
	HTTPPort    string `validate:"required"` // :3000
	MetricsPort string // :9090, empty serves /metrics on HTTPPort
	LogLevel    string `validate:"oneof=debug info warn error"`
	Tracing     bool   // Export spans over OTLP/HTTP
	Webhook     Webhook
	Proxy       Proxy
	FakeN8N     FakeN8N
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName:     getenv("APP_NAME", "realty-relay"),
		HTTPPort:    getenv("HTTP_PORT", ":3000"),
		MetricsPort: getenv("METRICS_PORT", ":9090"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Tracing:     getenvBool("TRACING_ENABLED", false),
		Webhook: Webhook{
			URL:               getenv("REALTY_WEBHOOK_URL", DefaultWebhookURL),
			Param:             getenv("REALTY_WEBHOOK_PARAM", "contactMessage"),
			MaxAttempts:       getenvInt("REALTY_MAX_ATTEMPTS", 3),
			InitialBackoff:    getenvDuration("REALTY_INITIAL_BACKOFF", 300*time.Millisecond),
			RetryClientErrors: getenvBool("REALTY_RETRY_CLIENT_ERRORS", true),
		},
		Proxy: Proxy{
			Timeout:            getenvDuration("REALTY_PROXY_TIMEOUT", 15*time.Second),
			MaxAttempts:        getenvInt("REALTY_PROXY_MAX_ATTEMPTS", 1),
			ProbeUpstream:      getenvBool("REALTY_HEALTH_PROBE_UPSTREAM", false),
			EnableWebhookTest:  getenvBool("REALTY_ENABLE_WEBHOOK_TEST", false),
			WebhookTestTimeout: getenvDuration("WEBHOOK_TEST_TIMEOUT", 10*time.Second),
		},
		FakeN8N: FakeN8N{
			FailFirstN:      getenvInt("FAIL_FIRST_N", 0),
			ResponseDelayMS: getenvInt("RESPONSE_DELAY_MS", 0),
			Port:            getenv("FAKE_N8N_PORT", ":5678"),
			ReadTimeout:     getenvDuration("FAKE_N8N_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getenvDuration("FAKE_N8N_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getenvDuration("FAKE_N8N_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

// Validate checks the loaded values and reports every offending field.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
