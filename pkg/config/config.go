package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-analyst.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Log        LogConfig        `yaml:"log"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Forecast   ForecastConfig   `yaml:"forecast"`
	Cache      CacheConfig      `yaml:"cache"`
	Redis      RedisConfig      `yaml:"redis"`
	S3         S3Config         `yaml:"s3"`
	Assistant  AssistantConfig  `yaml:"assistant"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:""` // json|console, derived from Env when empty
}

// DatasourceConfig describes the business database the assistant queries.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"` // postgres|mssql
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 selects the driver default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:"ekaya"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:"vendas"`
	Schema   string `yaml:"schema" env:"DATASOURCE_SCHEMA" env-default:""` // empty means every user schema
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:"disable"`
	// PoolMaxConns is the maximum number of connections in the datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
}

// AsMap renders the datasource settings in the shape adapter factories accept.
func (d *DatasourceConfig) AsMap() map[string]any {
	m := map[string]any{
		"host":           d.Host,
		"user":           d.User,
		"password":       d.Password,
		"database":       d.Database,
		"ssl_mode":       d.SSLMode,
		"pool_max_conns": int(d.PoolMaxConns),
	}
	if d.Port > 0 {
		m["port"] = d.Port
	}
	if d.Schema != "" {
		m["schema"] = d.Schema
	}
	return m
}

// EmbeddingConfig configures the OpenAI-compatible embedding endpoint used
// for the semantic fallback. The fallback is disabled when BaseURL is empty.
type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:""`
	Model   string        `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey  string        `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
	Timeout time.Duration `yaml:"timeout" env:"EMBEDDING_TIMEOUT" env-default:"5s"`
	// CircuitThreshold is the number of consecutive failures that opens the circuit.
	CircuitThreshold int           `yaml:"circuit_threshold" env:"EMBEDDING_CIRCUIT_THRESHOLD" env-default:"5"`
	CircuitReset     time.Duration `yaml:"circuit_reset" env:"EMBEDDING_CIRCUIT_RESET" env-default:"30s"`
}

// IsAvailable returns true if an embedding endpoint is configured.
func (c *EmbeddingConfig) IsAvailable() bool {
	return c.BaseURL != "" && c.Model != ""
}

// ClassifierConfig tunes the hybrid intent classifier.
type ClassifierConfig struct {
	SemanticThreshold float64 `yaml:"semantic_threshold" env:"CLASSIFIER_SEMANTIC_THRESHOLD" env-default:"0.45"`
	MinScoreDelta     float64 `yaml:"min_score_delta" env:"CLASSIFIER_MIN_SCORE_DELTA" env-default:"0.15"`
	SemanticTolerance float64 `yaml:"semantic_tolerance" env:"CLASSIFIER_SEMANTIC_TOLERANCE" env-default:"0.05"`
}

// ForecastConfig tunes the forecast service.
type ForecastConfig struct {
	MaxWorkers    int `yaml:"max_workers" env:"FORECAST_MAX_WORKERS" env-default:"4"`
	LookbackYears int `yaml:"lookback_years" env:"FORECAST_LOOKBACK_YEARS" env-default:"2"`
}

// CacheConfig selects and bounds the model/forecast blob store.
type CacheConfig struct {
	Backend    string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"file"` // file|redis|s3
	Dir        string        `yaml:"dir" env:"CACHE_DIR" env-default:"cache/forecast"`
	MaxEntries int           `yaml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"2000"`
	MaxBytes   int64         `yaml:"max_bytes" env:"CACHE_MAX_BYTES" env-default:"536870912"`
	TTL        time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"168h"`
	// L1MaxCost is the in-memory byte budget in front of the backend. 0 disables L1.
	L1MaxCost int64 `yaml:"l1_max_cost" env:"CACHE_L1_MAX_COST" env-default:"67108864"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// S3Config holds bucket settings for the s3 cache backend.
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET" env-default:""`
	Region          string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:""` // for MinIO and other S3-compatible stores
	Prefix          string `yaml:"prefix" env:"S3_PREFIX" env-default:"forecast-cache/"`
	AccessKeyID     string `yaml:"-" env:"S3_ACCESS_KEY_ID"`     // Secret - not in YAML
	SecretAccessKey string `yaml:"-" env:"S3_SECRET_ACCESS_KEY"` // Secret - not in YAML
}

// AssistantConfig holds orchestration settings.
type AssistantConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"ASSISTANT_REQUEST_TIMEOUT" env-default:"60s"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; defaults and environment apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !isMissingFile(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.Env == "production" {
			cfg.Log.Format = "json"
		}
	}

	return cfg, nil
}

// validate checks cross-field constraints cleanenv cannot express.
func (c *Config) validate() error {
	switch c.Datasource.Type {
	case "postgres", "mssql":
	default:
		return fmt.Errorf("datasource.type must be postgres or mssql, got %q", c.Datasource.Type)
	}

	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required for the redis cache backend")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 cache backend")
		}
	default:
		return fmt.Errorf("cache.backend must be file, redis or s3, got %q", c.Cache.Backend)
	}

	if c.Forecast.MaxWorkers < 1 {
		return fmt.Errorf("forecast.max_workers must be at least 1")
	}
	if c.Forecast.LookbackYears < 1 {
		return fmt.Errorf("forecast.lookback_years must be at least 1")
	}
	return nil
}

// isMissingFile reports whether cleanenv failed only because config.yaml is absent.
func isMissingFile(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such file") || strings.Contains(msg, "cannot find the file")
}
