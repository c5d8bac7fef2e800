// Package config handles application configuration from environment
// variables, a .env file, and an optional YAML overlay.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for every binary. Each binary validates only
// the fields it needs.
type Config struct {
	Port          string `yaml:"port"`
	DashboardPort string `yaml:"dashboard_port"`
	DatabaseURL   string `yaml:"database_url"`
	JWTSecret     string `yaml:"jwt_secret"`
	RedisURL      string `yaml:"redis_url"`

	TelemetryBaseURL string        `yaml:"telemetry_base_url"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`

	FirebaseCredentialsBase64 string `yaml:"firebase_credentials_base64"`
	FirebaseCredentialsFile   string `yaml:"firebase_credentials_file"`
	AlertTopic                string `yaml:"alert_topic"`

	IngestRatePerSecond float64 `yaml:"ingest_rate_per_second"`
	IngestBurst         int     `yaml:"ingest_burst"`

	// Only forwarded to the presentation layer
	MapsAPIKey string `yaml:"maps_api_key"`
}

// Load reads .env (if present), then environment variables with defaults,
// then the YAML file named by CONFIG_FILE (if set), which wins over both.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables from system")
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "8000"),
		DashboardPort:             getEnv("DASHBOARD_PORT", "8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTSecret:                 getEnv("APP_JWT_SECRET", ""),
		RedisURL:                  getEnv("REDIS_URL", ""),
		TelemetryBaseURL:          getEnv("TELEMETRY_BASE_URL", "http://localhost:8000"),
		RefreshInterval:           getSecondsEnv("REFRESH_INTERVAL_SECONDS", 10),
		HTTPTimeout:               getSecondsEnv("HTTP_TIMEOUT_SECONDS", 10),
		FirebaseCredentialsBase64: getEnv("FIREBASE_CREDENTIALS_BASE64", ""),
		FirebaseCredentialsFile:   getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		AlertTopic:                getEnv("FCM_ALERT_TOPIC", "critical-bins"),
		IngestRatePerSecond:       getFloatEnv("INGEST_RATE_PER_SECOND", 2),
		IngestBurst:               getIntEnv("INGEST_BURST", 5),
		MapsAPIKey:                getEnv("MAPS_API_KEY", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
		log.Printf("✅ Config file loaded: %s", path)
	}

	return cfg, nil
}

// MergeFile overlays non-zero values from a YAML file
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.MergeYAML(data)
}

// MergeYAML overlays non-zero values from YAML. Durations use Go syntax ("15s").
func (c *Config) MergeYAML(data []byte) error {
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	setString(&c.Port, overlay.Port)
	setString(&c.DashboardPort, overlay.DashboardPort)
	setString(&c.DatabaseURL, overlay.DatabaseURL)
	setString(&c.JWTSecret, overlay.JWTSecret)
	setString(&c.RedisURL, overlay.RedisURL)
	setString(&c.TelemetryBaseURL, overlay.TelemetryBaseURL)
	setString(&c.FirebaseCredentialsBase64, overlay.FirebaseCredentialsBase64)
	setString(&c.FirebaseCredentialsFile, overlay.FirebaseCredentialsFile)
	setString(&c.AlertTopic, overlay.AlertTopic)
	setString(&c.MapsAPIKey, overlay.MapsAPIKey)
	if overlay.RefreshInterval > 0 {
		c.RefreshInterval = overlay.RefreshInterval
	}
	if overlay.HTTPTimeout > 0 {
		c.HTTPTimeout = overlay.HTTPTimeout
	}
	if overlay.IngestRatePerSecond > 0 {
		c.IngestRatePerSecond = overlay.IngestRatePerSecond
	}
	if overlay.IngestBurst > 0 {
		c.IngestBurst = overlay.IngestBurst
	}
	return nil
}

// ValidateServer checks what the telemetry server needs
func (c *Config) ValidateServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "APP_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateDashboard checks what the dashboard needs
func (c *Config) ValidateDashboard() error {
	if c.TelemetryBaseURL == "" {
		return fmt.Errorf("missing required configuration: TELEMETRY_BASE_URL")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		log.Printf("⚠️  Invalid %s=%q, using %ds", key, value, defaultSeconds)
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
