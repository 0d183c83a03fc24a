// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	SharedSecret string

	WebhookURL string

	AMQPURL      string
	AMQPExchange string

	SendTimeout          time.Duration
	RelayTimeout         time.Duration
	RelayMaxInFlight     int
	ReconnectMaxAttempts int

	YesLabel string
	NoLabel  string

	// SecretKey is the optional 32-byte AES key for credential encryption at
	// rest, decoded from hex. Nil when WA_SECRET_KEY is unset.
	SecretKey []byte
}

// RelayEnabled reports whether the webhook relay should run. Both the URL
// and the shared secret must be configured; anything less disables the relay
// silently, which is a valid configuration state, not an error.
func (c *Config) RelayEnabled() bool {
	return c.WebhookURL != "" && c.SharedSecret != ""
}

// AMQPEnabled reports whether the optional broker sink should run.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional. WA_SHARED_SECRET defaults to empty,
// which authenticates empty-header requests; operators must override it in
// any real deployment. Defaults: WA_LISTEN_ADDR (127.0.0.1:3001), WA_DB_PATH
// (wa-adapter.db), WA_SEND_TIMEOUT (20s), WA_RELAY_TIMEOUT (10s),
// WA_RELAY_MAX_INFLIGHT (8), WA_RECONNECT_MAX_ATTEMPTS (0, unbounded),
// WA_AMQP_EXCHANGE (wa.events), WA_YES_LABEL (כן), WA_NO_LABEL (לא).
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:       "127.0.0.1:3001",
		DBPath:           "wa-adapter.db",
		SharedSecret:     os.Getenv("WA_SHARED_SECRET"),
		WebhookURL:       os.Getenv("WA_WEBHOOK_URL"),
		AMQPURL:          os.Getenv("WA_AMQP_URL"),
		AMQPExchange:     "wa.events",
		SendTimeout:      20 * time.Second,
		RelayTimeout:     10 * time.Second,
		RelayMaxInFlight: 8,
		YesLabel:         "כן",
		NoLabel:          "לא",
	}

	if v, ok := os.LookupEnv("WA_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("WA_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("WA_AMQP_EXCHANGE"); ok {
		cfg.AMQPExchange = v
	}
	if v, ok := os.LookupEnv("WA_YES_LABEL"); ok {
		cfg.YesLabel = v
	}
	if v, ok := os.LookupEnv("WA_NO_LABEL"); ok {
		cfg.NoLabel = v
	}

	if v, ok := os.LookupEnv("WA_SEND_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WA_SEND_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.SendTimeout = parsed
	}
	if v, ok := os.LookupEnv("WA_RELAY_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("WA_RELAY_TIMEOUT has invalid duration %q: %w", v, err)
		}
		cfg.RelayTimeout = parsed
	}
	if v, ok := os.LookupEnv("WA_RELAY_MAX_INFLIGHT"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("WA_RELAY_MAX_INFLIGHT has invalid value %q", v)
		}
		cfg.RelayMaxInFlight = parsed
	}
	if v, ok := os.LookupEnv("WA_RECONNECT_MAX_ATTEMPTS"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("WA_RECONNECT_MAX_ATTEMPTS has invalid value %q", v)
		}
		cfg.ReconnectMaxAttempts = parsed
	}

	if v, ok := os.LookupEnv("WA_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("WA_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("WA_SECRET_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}
