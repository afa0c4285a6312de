package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment
// variables. The same config feeds the CLI and the local simulator so a
// single .env covers both.
type Config struct {
	AppEnv      string
	APIBaseURL  string
	APIToken    string
	HTTPTimeout time.Duration
	DownloadDir string

	// Polling cadence overrides; zero keeps the engine defaults.
	PollProcessingInterval time.Duration
	PollPendingInterval    time.Duration
	PollSettledInterval    time.Duration
	PollIdleInterval       time.Duration

	// Simulator settings.
	SimPort          string
	SimStepDelay     time.Duration
	SimCORSOrigins   []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		APIBaseURL:  getEnv("DECKHAND_API_URL", "http://localhost:8721"),
		APIToken:    os.Getenv("DECKHAND_API_TOKEN"),
		HTTPTimeout: time.Second * time.Duration(getEnvInt("DECKHAND_HTTP_TIMEOUT_SECONDS", 30)),
		DownloadDir: getEnv("DECKHAND_DOWNLOAD_DIR", "."),

		PollProcessingInterval: envDurationMillis("DECKHAND_POLL_PROCESSING_MS"),
		PollPendingInterval:    envDurationMillis("DECKHAND_POLL_PENDING_MS"),
		PollSettledInterval:    envDurationMillis("DECKHAND_POLL_SETTLED_MS"),
		PollIdleInterval:       envDurationMillis("DECKHAND_POLL_IDLE_MS"),

		SimPort:          getEnv("SIM_PORT", "8721"),
		SimStepDelay:     time.Millisecond * time.Duration(getEnvInt("SIM_STEP_DELAY_MS", 2000)),
		SimCORSOrigins:   splitCSV(getEnv("SIM_CORS_ORIGINS", "*")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("DECKHAND_API_URL is not a valid URL: %q", cfg.APIBaseURL)
	}
	cfg.APIBaseURL = strings.TrimRight(base.String(), "/")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDurationMillis(key string) time.Duration {
	return time.Millisecond * time.Duration(getEnvInt(key, 0))
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
