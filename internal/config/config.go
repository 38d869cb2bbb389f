package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g. POS_SERVER_PORT
const EnvPrefix = "POS"

// Config holds all configuration for the point-of-sale service
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"server"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"storage"`
	Database DatabaseConfig `yaml:"database" envconfig:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq" envconfig:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis" envconfig:"redis"`
	Auth     AuthConfig     `yaml:"auth" envconfig:"auth"`
	Report   ReportConfig   `yaml:"report" envconfig:"report"`
	DayReset DayResetConfig `yaml:"day_reset" envconfig:"day_reset"`
	Branches []string       `yaml:"branches" envconfig:"branches"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"shutdown_timeout"`
}

// StorageConfig selects the order store backend
type StorageConfig struct {
	Driver     string `yaml:"driver" envconfig:"driver"`
	DataDir    string `yaml:"data_dir" envconfig:"data_dir"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"sqlite_path"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host" envconfig:"host"`
	Port     int    `yaml:"port" envconfig:"port"`
	User     string `yaml:"user" envconfig:"user"`
	Password string `yaml:"password" envconfig:"password"`
	Database string `yaml:"database" envconfig:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"enabled"`
	Host     string `yaml:"host" envconfig:"host"`
	Port     int    `yaml:"port" envconfig:"port"`
	User     string `yaml:"user" envconfig:"user"`
	Password string `yaml:"password" envconfig:"password"`
}

// RedisConfig holds the day-reset guard connection
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"enabled"`
	Addr     string `yaml:"addr" envconfig:"addr"`
	Password string `yaml:"password" envconfig:"password"`
	DB       int    `yaml:"db" envconfig:"db"`
}

// AuthConfig holds token and login throttling settings
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" envconfig:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl" envconfig:"token_ttl"`
	LoginRPS   int           `yaml:"login_rps" envconfig:"login_rps"`
	LoginBurst int           `yaml:"login_burst" envconfig:"login_burst"`
	AdminPIN   string        `yaml:"admin_pin" envconfig:"admin_pin"`
}

// ReportConfig controls how calendar days are computed
type ReportConfig struct {
	Timezone string `yaml:"timezone" envconfig:"timezone"`
}

// DayResetConfig controls the archive reset scheduler
type DayResetConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"enabled"`
	Interval time.Duration `yaml:"interval" envconfig:"interval"`
}

// Default returns a configuration usable for a single-process file-backed install
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000, ShutdownTimeout: 10 * time.Second},
		Storage: StorageConfig{
			Driver:     "file",
			DataDir:    "data",
			SQLitePath: "data/pos.db",
		},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "pos", Database: "pos"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Auth:     AuthConfig{TokenTTL: 12 * time.Hour, LoginRPS: 1, LoginBurst: 5, AdminPIN: "0000"},
		Report:   ReportConfig{Timezone: "Local"},
		DayReset: DayResetConfig{Enabled: true, Interval: time.Minute},
		Branches: []string{"main"},
	}
}

// Load reads configuration from a YAML file and applies POS_* environment overrides.
// An empty filename skips the file and starts from defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "file", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if len(c.Branches) == 0 {
		return fmt.Errorf("at least one branch must be configured")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if len(c.Auth.AdminPIN) < 4 {
		return fmt.Errorf("auth.admin_pin must have at least 4 characters")
	}
	if c.DayReset.Interval <= 0 {
		return fmt.Errorf("day_reset.interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the report timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Report.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", c.Report.Timezone, err)
	}
	return loc, nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
