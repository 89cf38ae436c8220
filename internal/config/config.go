package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// FetchInterval controls how often gauge data is copied into InfluxDB.
	FetchInterval time.Duration

	// Live-data cache.
	CacheTTL        time.Duration
	CacheMaxEntries int           // max snapshots kept per key (0 = unlimited)
	StoreMaxAge     time.Duration // max age of kept snapshots (0 = unlimited)

	Influx InfluxConfig

	APIKey string

	DWDStationID int

	GeocoderAPIKey   string
	OpenMeteoCity    string
	OpenMeteoCountry string

	MQTT MQTTConfig

	// IngestStations are the station keys ingested by the scheduler.
	IngestStations []int

	// EnvFileErr is set when no .env file could be loaded and only the
	// process environment was used.
	EnvFileErr error
}

type InfluxConfig struct {
	URL             string
	Token           string
	Org             string
	Bucket          string
	StationBucket   string
	BenchmarkBucket string
	Timeout         time.Duration
	InsecureTLS     bool
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// Enabled reports whether a broker is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{EnvFileErr: godotenv.Load()}
	var err error

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}
	if cfg.LogLevel, err = parseLogLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 64); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Influx, err = loadInflux(); err != nil {
		return nil, err
	}

	cfg.APIKey = os.Getenv("API_KEY")
	if cfg.APIKey == "" {
		return nil, errors.New("API_KEY is required")
	}

	if cfg.DWDStationID, err = getenvInt("DWD_STATION_ID", 2712); err != nil {
		return nil, err
	}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.OpenMeteoCity = os.Getenv("OPENMETEO_CITY")
	cfg.OpenMeteoCountry = os.Getenv("OPENMETEO_COUNTRY")

	cfg.MQTT = MQTTConfig{
		Broker:   os.Getenv("MQTT_BROKER"),
		Topic:    getenvDefault("MQTT_TOPIC", "fogcast/weatherstation"),
		ClientID: getenvDefault("MQTT_CLIENT_ID", "fogcast-backend"),
	}

	if cfg.IngestStations, err = parseStationKeys(getenvDefault("INGEST_STATIONS", "1,2")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadInflux() (InfluxConfig, error) {
	ic := InfluxConfig{
		URL:             os.Getenv("INFLUXDB_URL"),
		Token:           os.Getenv("INFLUXDB_TOKEN"),
		Org:             getenvDefault("INFLUXDB_ORG", "FogCast"),
		Bucket:          getenvDefault("INFLUXDB_BUCKET", "WeatherForecast"),
		StationBucket:   getenvDefault("INFLUXDB_STATION_BUCKET", "WeatherData"),
		BenchmarkBucket: getenvDefault("INFLUXDB_BENCHMARK_BUCKET", "benchmark_score"),
	}
	if ic.URL == "" || ic.Token == "" {
		return ic, errors.New("INFLUXDB_URL and INFLUXDB_TOKEN are required")
	}

	var err error
	if ic.Timeout, err = getenvDuration("INFLUXDB_TIMEOUT", 120*time.Second); err != nil {
		return ic, err
	}
	if v := os.Getenv("INFLUXDB_INSECURE_TLS"); v != "" {
		if ic.InsecureTLS, err = strconv.ParseBool(v); err != nil {
			return ic, fmt.Errorf("invalid INFLUXDB_INSECURE_TLS: %w", err)
		}
	}
	return ic, nil
}

func parseStationKeys(s string) ([]int, error) {
	var keys []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid INGEST_STATIONS entry %q: %w", part, err)
		}
		keys = append(keys, n)
	}
	return keys, nil
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

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
