package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	StoreDriver    string `mapstructure:"STORE_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	SQLitePath     string `mapstructure:"SQLITE_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	OutboxTopic        string        `mapstructure:"OUTBOX_TOPIC"`
	OutboxPollInterval time.Duration `mapstructure:"OUTBOX_POLL_INTERVAL"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`

	StrictStatusTransitions bool `mapstructure:"STRICT_STATUS_TRANSITIONS"`
	SeedDemoData            bool `mapstructure:"SEED_DEMO_DATA"`
}

var defaults = map[string]any{
	"HTTP_PORT":                 "8080",
	"STORE_DRIVER":              StorePostgres,
	"DB_HOST":                   "localhost",
	"DB_PORT":                   5432,
	"DB_USER":                   "postgres",
	"DB_PASSWORD":               "postgres",
	"DB_NAME":                   "ecommerce",
	"MIGRATIONS_PATH":           "",
	"SQLITE_PATH":               "fulfillment.db",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"KAFKA_BROKERS":             "",
	"OUTBOX_TOPIC":              "fulfillment-orders",
	"OUTBOX_POLL_INTERVAL":      time.Second,
	"REQUEST_TIMEOUT":           10 * time.Second,
	"SHUTDOWN_TIMEOUT":          5 * time.Second,
	"LOG_LEVEL":                 "info",
	"STRICT_STATUS_TRANSITIONS": false,
	"SEED_DEMO_DATA":            false,
}

// Load reads the environment on top of the defaults. When CONFIG_FILE is
// set, that file (any format viper knows, .env included) is read first and
// environment variables still win.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.DBPort <= 0 {
		return fmt.Errorf("invalid DB_PORT %d", c.DBPort)
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS on commas. Empty means the outbox relay is off.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
