package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultMaxOutputBytes matches the 10 MiB stdout ceiling the dashboard has
// always used for model output.
const DefaultMaxOutputBytes = 10 * 1024 * 1024

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// StaticDir overrides the embedded assets served at /static/ when set.
	// Relative paths are resolved against the process working directory at startup.
	StaticDir string

	SQLiteDriver          string
	SQLiteDSN             string
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration

	// PythonBin is the executable started for both relays. ForecastScript and
	// AnalyticsScript are passed as its first argument when non-empty.
	PythonBin       string
	ForecastScript  string
	AnalyticsScript string
	ScriptDir       string

	ForecastTimeout  time.Duration
	AnalyticsTimeout time.Duration
	MaxOutputBytes   int

	ForecastMaxConcurrent int
	ForecastRateLimit     float64
	ForecastRateBurst     int

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string

	// DistrictsFile replaces the embedded district list when set.
	DistrictsFile string
}

// MQTTEnabled reports whether advisories should be published.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory, if present, is loaded first without overriding
// variables that are already set.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := envOrDefault("HTTP_ADDR", ":3000")

	staticDir := strings.TrimSpace(os.Getenv("STATIC_DIR"))
	if staticDir != "" {
		staticDir, err = filepath.Abs(staticDir)
		if err != nil {
			return Config{}, fmt.Errorf("STATIC_DIR %q: %w", staticDir, err)
		}
	}

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", 0)
	if err != nil {
		return Config{}, err
	}

	forecastTimeout, err := durationFromEnv("FORECAST_TIMEOUT", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	analyticsTimeout, err := durationFromEnv("ANALYTICS_TIMEOUT", time.Minute)
	if err != nil {
		return Config{}, err
	}
	maxOutputBytes, err := intFromEnv("MAX_OUTPUT_BYTES", DefaultMaxOutputBytes)
	if err != nil {
		return Config{}, err
	}
	if maxOutputBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_OUTPUT_BYTES must be > 0, got %d", maxOutputBytes)
	}

	maxConcurrent, err := intFromEnv("FORECAST_MAX_CONCURRENT", 4)
	if err != nil {
		return Config{}, err
	}
	if maxConcurrent < 0 {
		return Config{}, fmt.Errorf("FORECAST_MAX_CONCURRENT must be >= 0, got %d", maxConcurrent)
	}
	rateBurst, err := intFromEnv("FORECAST_RATE_BURST", 1)
	if err != nil {
		return Config{}, err
	}
	rateLimitStr := envOrDefault("FORECAST_RATE_LIMIT", "0")
	rateLimit, err := strconv.ParseFloat(rateLimitStr, 64)
	if err != nil || rateLimit < 0 {
		return Config{}, fmt.Errorf("invalid FORECAST_RATE_LIMIT %q (expected non-negative number)", rateLimitStr)
	}

	cacheBackend := strings.ToLower(envOrDefault("CACHE_BACKEND", "none"))
	switch cacheBackend {
	case "none", "memory", "redis":
	default:
		return Config{}, fmt.Errorf("invalid CACHE_BACKEND %q (allowed: none, memory, redis)", cacheBackend)
	}
	cacheTTL, err := durationFromEnv("CACHE_TTL", 10*time.Minute)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := intFromEnv("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}

	mqttPort, err := intFromEnv("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		HTTPAddr:              httpAddr,
		StaticDir:             staticDir,
		SQLiteDriver:          envOrDefault("DB_DRIVER", "sqlite3"),
		SQLiteDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		SQLitePath:            envOrDefault("SQLITE_PATH", "data/aquacast.db"),
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		PythonBin:             envOrDefault("PYTHON_BIN", "./venv/bin/python"),
		ForecastScript:        envOrDefault("FORECAST_SCRIPT", "ensemble_model.py"),
		AnalyticsScript:       envOrDefault("ANALYTICS_SCRIPT", "get_analytics.py"),
		ScriptDir:             strings.TrimSpace(os.Getenv("SCRIPT_DIR")),
		ForecastTimeout:       forecastTimeout,
		AnalyticsTimeout:      analyticsTimeout,
		MaxOutputBytes:        maxOutputBytes,
		ForecastMaxConcurrent: maxConcurrent,
		ForecastRateLimit:     rateLimit,
		ForecastRateBurst:     rateBurst,
		CacheBackend:          cacheBackend,
		CacheTTL:              cacheTTL,
		RedisAddr:             envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		MQTTBroker:            strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:              mqttPort,
		MQTTClientID:          envOrDefault("MQTT_CLIENT_ID", "aquacast-server"),
		MQTTTopic:             envOrDefault("MQTT_TOPIC", "aquacast/advisories"),
		DistrictsFile:         strings.TrimSpace(os.Getenv("DISTRICTS_FILE")),
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

// durationFromEnv parses a Go duration; "0" or "0s" disables the limit.
func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, s)
	}
	return d, nil
}
