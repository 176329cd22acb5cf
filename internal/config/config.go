package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"

	DefaultStoreTimeout = 5 * time.Second
)

type Config struct {
	Environment string `toml:"environment"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	StoreDriver    string        `toml:"store_driver"`
	StoreTimeout   time.Duration `toml:"store_timeout"`
	MigrateOnStart bool          `toml:"migrate_on_start"`

	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"-"`

	MongoURI    string `toml:"mongo_uri"`
	MongoDBName string `toml:"mongo_db_name"`

	// redis, used for rate limiting
	RedisHost     string `toml:"redis_host"`
	RedisPort     string `toml:"redis_port"`
	RedisPassword string `toml:"-"`

	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	PasswordHashCost       int      `toml:"password_hash_cost"`
	RateLimitAllowedPerMin int      `toml:"rate_limit_allowed_per_min"`
	AllowedOrigins         []string `toml:"allowed_origins"`

	// LegacyNotFound makes the read endpoints answer 404 on empty results,
	// which is what the shipped mobile client expects.
	LegacyNotFound bool `toml:"legacy_not_found"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}
	return cfg, nil
}

// Load reads the TOML file at path, picks the section for env and applies
// defaults and secrets taken from the environment.
func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	if cfg.Environment == "" {
		cfg.Environment = strings.ToLower(env)
	}

	cfg.applyDefaults()
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.StoreDriver == "" {
		c.StoreDriver = StoreDriverPostgres
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.MongoDBName == "" {
		c.MongoDBName = "gymtracker"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.RateLimitAllowedPerMin == 0 {
		c.RateLimitAllowedPerMin = 15
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("GYMTRACKER_PG_PASSWORD"); v != "" {
		c.PostgresPassword = v
	}
	if v := getenv("GYMTRACKER_REDIS_PASS"); v != "" {
		c.RedisPassword = v
	}
	if v := getenv("GYMTRACKER_MONGO_URI"); v != "" {
		c.MongoURI = v
	}
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.PostgresHost == "" || c.PostgresDBName == "" {
			return errors.New("postgres host and db name are required")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return errors.New("mongo uri is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %s", c.StoreDriver)
	}
	if c.PasswordHashCost != 0 && (c.PasswordHashCost < 4 || c.PasswordHashCost > 31) {
		return fmt.Errorf("invalid password hash cost: %d", c.PasswordHashCost)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}
