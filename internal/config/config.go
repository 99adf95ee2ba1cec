package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
)

// Storage drivers accepted by StorageConfig.Driver.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Seed     SeedConfig     `yaml:"seed"`
	Logging  logger.Config  `yaml:"logging"`
}

type AppConfig struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

type ServerConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type StorageConfig struct {
	Driver  string `yaml:"driver"`
	DataDir string `yaml:"data_dir"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	Channel   string `yaml:"channel"`
}

// Enabled reports whether a redis server is configured at all.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenExpiry   time.Duration `yaml:"token_expiry"`
	RefreshExpiry time.Duration `yaml:"refresh_expiry"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

// SeedConfig describes the main admin created on first start.
type SeedConfig struct {
	MainAdminName     string `yaml:"main_admin_name"`
	MainAdminEmail    string `yaml:"main_admin_email"`
	MainAdminPassword string `yaml:"main_admin_password"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "advisorhub",
			Env:  "development",
			Port: 3001,
		},
		Server: ServerConfig{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173"},
			RateLimit:       20,
			RateBurst:       40,
			MaxBodyBytes:    1 << 20,
		},
		Storage: StorageConfig{
			Driver:  DriverFile,
			DataDir: "data",
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "advisorhub",
			Channel:   "advisorhub:notifications",
		},
		Auth: AuthConfig{
			JWTSecret:     defaultJWTSecret,
			TokenExpiry:   15 * time.Minute,
			RefreshExpiry: 7 * 24 * time.Hour,
			BcryptCost:    12,
		},
		Seed: SeedConfig{
			MainAdminName:     "Sayanth",
			MainAdminEmail:    "sayanth@example.com",
			MainAdminPassword: "41421014",
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the yaml file at path on top of Default, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

func (c *Config) loadFromEnv() error {
	if env := os.Getenv("APP_ENV"); env != "" {
		c.App.Env = env
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.App.Port = p
	}

	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dbConfig, err := parseDatabaseURL(dsn)
		if err != nil {
			return err
		}
		dbConfig.MaxOpenConns = c.Database.MaxOpenConns
		dbConfig.MaxIdleConns = c.Database.MaxIdleConns
		dbConfig.ConnMaxLifetime = c.Database.ConnMaxLifetime
		c.Database = *dbConfig
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if name := os.Getenv("MAIN_ADMIN_NAME"); name != "" {
		c.Seed.MainAdminName = name
	}

	if email := os.Getenv("MAIN_ADMIN_EMAIL"); email != "" {
		c.Seed.MainAdminEmail = email
	}

	if password := os.Getenv("MAIN_ADMIN_PASSWORD"); password != "" {
		c.Seed.MainAdminPassword = password
	}

	return nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.App.Port)
	}

	switch c.Storage.Driver {
	case DriverFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage data_dir is required for the file driver")
		}
	case DriverMemory:
	case DriverRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("redis addr is required for the redis driver")
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.IsProduction() && c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("JWT secret must be set in production")
	}

	if c.Auth.TokenExpiry <= 0 || c.Auth.RefreshExpiry <= 0 {
		return fmt.Errorf("token expiry must be positive")
	}

	if c.Seed.MainAdminEmail == "" || c.Seed.MainAdminPassword == "" {
		return fmt.Errorf("main admin email and password are required")
	}

	return nil
}

func parseDatabaseURL(raw string) (*DatabaseConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid database URL scheme: %q", u.Scheme)
	}

	cfg := &DatabaseConfig{
		Host:    u.Hostname(),
		Port:    5432,
		Name:    strings.TrimPrefix(u.Path, "/"),
		SSLMode: "disable",
	}
	if cfg.Host == "" || cfg.Name == "" {
		return nil, fmt.Errorf("database URL needs a host and a database name")
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port number: %v", err)
		}
		cfg.Port = port
	}

	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}

	if mode := u.Query().Get("sslmode"); mode != "" {
		cfg.SSLMode = mode
	}

	return cfg, nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + c.Database.SSLMode,
	}
	return u.String()
}
