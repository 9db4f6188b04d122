package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DB struct {
		DSN string `yaml:"dsn"`
	} `yaml:"db"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	// Timezone is the single wall-clock location events are displayed in.
	Timezone string `yaml:"timezone"`
	// ResyncCron schedules a full refetch of every source as a safety net
	// for missed notifications. Empty disables it.
	ResyncCron string `yaml:"resync_cron"`
	// TaskStatuses limits which tasks appear on the calendar; empty means all.
	TaskStatuses []string `yaml:"task_statuses"`
	// MaintenanceURL is the detail page for a maintenance record; "{id}" is
	// replaced with the record id.
	MaintenanceURL string `yaml:"maintenance_url"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	PrometheusEnabled bool     `yaml:"prometheus_enabled"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	// CSRFEnabled requires the double-submit token on mutating API calls.
	CSRFEnabled bool `yaml:"csrf_enabled"`

	Location *time.Location `yaml:"-"`
}

// Load builds the configuration from an optional YAML file named by
// APP_CONFIG_FILE, overridden by APP_* environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("APP_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DB.DSN = getenvDefault("APP_DB_DSN", cfg.DB.DSN)
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = dsnFromParts()
	}

	cfg.Log.Level = getenvDefault("APP_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("APP_LOG_FORMAT", cfg.Log.Format)
	cfg.Timezone = getenvDefault("APP_TIMEZONE", cfg.Timezone)
	cfg.ResyncCron = getenvDefault("APP_RESYNC_CRON", cfg.ResyncCron)
	cfg.MaintenanceURL = getenvDefault("APP_MAINTENANCE_URL", cfg.MaintenanceURL)
	if statuses := getenvList("APP_TASK_STATUSES"); statuses != nil {
		cfg.TaskStatuses = statuses
	}
	cfg.RateLimit.RPS = getenvFloat("APP_RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = getenvInt("APP_RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", cfg.PrometheusEnabled)
	cfg.CSRFEnabled = getenvBool("APP_CSRF_ENABLED", cfg.CSRFEnabled)
	if proxies := getenvList("APP_TRUSTED_PROXIES"); proxies != nil {
		cfg.TrustedProxies = proxies
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{
		ListenAddr:     ":8080",
		Timezone:       "Local",
		ResyncCron:     "*/15 * * * *",
		MaintenanceURL: "/maintenance/{id}",
		CSRFEnabled:    true,
	}
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	cfg.RateLimit.RPS = 20
	cfg.RateLimit.Burst = 50
	return cfg
}

func dsnFromParts() string {
	host := os.Getenv("APP_DB_HOST")
	name := os.Getenv("APP_DB_NAME")
	user := os.Getenv("APP_DB_USER")
	password := os.Getenv("APP_DB_PASSWORD")
	port := getenvDefault("APP_DB_PORT", "5432")
	sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

	if host == "" || name == "" || user == "" || password == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
}

func (c *Config) validate() error {
	if c.DB.DSN == "" {
		return errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc

	switch strings.ToLower(c.Log.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be json or console (got %q)", c.Log.Format)
	}

	if c.ResyncCron != "" {
		if _, err := cron.ParseStandard(c.ResyncCron); err != nil {
			return fmt.Errorf("invalid APP_RESYNC_CRON %q: %w", c.ResyncCron, err)
		}
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit rps and burst must be positive")
	}
	return nil
}

// Warnings lists settings that are valid but not recommended.
func (c *Config) Warnings() []string {
	var out []string
	if len(c.TrustedProxies) == 0 {
		out = append(out, "no APP_TRUSTED_PROXIES configured; every peer may set X-Forwarded-For and X-Forwarded-Proto is ignored")
	}
	if !c.CSRFEnabled {
		out = append(out, "APP_CSRF_ENABLED is off; mutating API calls are not protected against cross-site requests")
	}
	if c.ResyncCron == "" {
		out = append(out, "APP_RESYNC_CRON is empty; missed change notifications are only repaired by the next notification")
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
