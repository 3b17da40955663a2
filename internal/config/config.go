package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port              int
	LogLevel          string
	BackendURL        string
	DatabaseURL       string
	NatsURL           string
	NatsToken         string
	VapiAPIKey        string
	VapiPhoneNumberID string
	VapiBaseURL       string
	TemplatesPath     string
	PollInterval      time.Duration
	PollTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func Load() Config {
	return Config{
		Port:              envInt("DASHBOARD_PORT", 8080),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		BackendURL:        envStr("BACKEND_URL", "http://localhost:5000"),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		NatsURL:           envStr("NATS_URL", ""),
		NatsToken:         envStr("NATS_TOKEN", ""),
		VapiAPIKey:        envStr("VAPI_API_KEY", ""),
		VapiPhoneNumberID: envStr("VAPI_PHONE_NUMBER_ID", ""),
		VapiBaseURL:       envStr("VAPI_BASE_URL", "https://api.vapi.ai"),
		TemplatesPath:     envStr("CALL_TEMPLATES_PATH", "call_templates.yaml"),
		PollInterval:      envDuration("CALL_POLL_INTERVAL", 5*time.Second),
		PollTimeout:       envDuration("CALL_POLL_TIMEOUT", 15*time.Minute),
		ShutdownTimeout:   envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// CallsEnabled reports whether enough Vapi settings are present to place calls.
func (c Config) CallsEnabled() bool {
	return c.VapiAPIKey != "" && c.VapiPhoneNumberID != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("30s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
