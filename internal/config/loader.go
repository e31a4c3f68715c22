package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "crewlink.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CREWLINK_PORT")
	setString(&cfg.Server.CORSOrigin, "CREWLINK_CORS_ORIGIN")
	setFloat64(&cfg.Server.RateLimitRPS, "CREWLINK_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "CREWLINK_RATE_LIMIT_BURST")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CREWLINK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CREWLINK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CREWLINK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CREWLINK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CREWLINK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "CREWLINK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CREWLINK_LOG_SERVICE")
	setDuration(&cfg.Heartbeat.Interval, "CREWLINK_HEARTBEAT_INTERVAL")
	setDuration(&cfg.Heartbeat.Timeout, "CREWLINK_HEARTBEAT_TIMEOUT")
	setDuration(&cfg.Heartbeat.Sweep, "CREWLINK_HEARTBEAT_SWEEP")
	setInt64(&cfg.Cache.MaxSizeMB, "CREWLINK_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.RoleTTL, "CREWLINK_CACHE_ROLE_TTL")
	setBool(&cfg.Otel.Enabled, "CREWLINK_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "CREWLINK_OTEL_ENDPOINT")
	setString(&cfg.MCP.APIKey, "CREWLINK_MCP_API_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be positive")
	}
	if cfg.Heartbeat.Timeout <= cfg.Heartbeat.Interval {
		return errors.New("heartbeat.timeout must exceed heartbeat.interval")
	}
	if cfg.Heartbeat.Sweep <= 0 {
		return errors.New("heartbeat.sweep must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
