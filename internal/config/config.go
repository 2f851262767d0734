package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/guardwatch/guardwatch/internal/domain"
)

type Config struct {
	Addr        string // API bind address, e.g., ":8080"
	LogDir      string // logs directory
	DatabaseURL string // postgres DSN; empty means use the in-memory store

	// CancelWindow is the single configured cancellation window. Everything
	// that measures the window reads this value.
	CancelWindow time.Duration

	// transient-store retry tuning
	RetryAttempts int
	RetryBackoff  time.Duration

	// push dispatch
	PushWebhook   string
	PushAPIKey    string
	NotifyWorkers int
	NotifyQueue   int

	// API keys and rate limits
	DeviceAPIKeys []string
	AdminAPIKeys  []string
	DeviceRPM     int
	DeviceBurst   int
	AdminRPM      int
	AdminBurst    int
}

func FromEnv() Config {
	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "logs"
	}

	window := domain.DefaultCancelWindow
	if v := os.Getenv("CANCEL_WINDOW_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			window = time.Duration(ms) * time.Millisecond
		}
	}

	retryAttempts := 3
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			retryAttempts = n
		}
	}

	retryBackoff := 300 * time.Millisecond
	if v := os.Getenv("RETRY_BACKOFF_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			retryBackoff = time.Duration(ms) * time.Millisecond
		}
	}

	return Config{
		Addr:          addr,
		LogDir:        logDir,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		CancelWindow:  window,
		RetryAttempts: retryAttempts,
		RetryBackoff:  retryBackoff,
		PushWebhook:   os.Getenv("PUSH_WEBHOOK_URL"),
		PushAPIKey:    os.Getenv("PUSH_API_KEY"),
		NotifyWorkers: intEnv("NOTIFY_WORKERS", 4),
		NotifyQueue:   intEnv("NOTIFY_QUEUE", 64),
		DeviceAPIKeys: splitKeys(os.Getenv("DEVICE_API_KEYS")),
		AdminAPIKeys:  splitKeys(os.Getenv("ADMIN_API_KEYS")),
		DeviceRPM:     intEnv("DEVICE_RPM", 240),
		DeviceBurst:   intEnv("DEVICE_BURST", 60),
		AdminRPM:      intEnv("ADMIN_RPM", 60),
		AdminBurst:    intEnv("ADMIN_BURST", 20),
	}
}

func intEnv(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitKeys(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
