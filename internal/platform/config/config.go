// Package config loads service configuration from a YAML file, .env files
// and LEDGER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Lock     LockConfig
	Approval ApprovalConfig
}

type ServerConfig struct {
	Port        string
	Mode        string // debug | release
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver       string // postgres | sqlite
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
	LogLevel     string // silent | error | warn | info
}

type LockConfig struct {
	Backend     string // local | redis
	RedisAddr   string
	Timeout     time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	Expiry      time.Duration
}

type ApprovalConfig struct {
	Approvers []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:ledger.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("lock.backend", "local")
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.timeout", "2s")
	v.SetDefault("lock.max_attempts", 3)
	v.SetDefault("lock.retry_base", "25ms")
	v.SetDefault("lock.expiry", "10s")

	v.SetDefault("approval.approvers", []string{"admin-001"})
}

// LoadEnvFiles loads .env.<ENV> and falls back to .env. Missing files are
// not an error; variables already set in the process win.
func LoadEnvFiles() {
	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	if err := godotenv.Load(".env." + env); err != nil {
		_ = godotenv.Load()
	}
}

// Load reads path (may be empty) and the environment.
func Load(path string) (*Config, error) {
	LoadEnvFiles()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../../configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Mode:        v.GetString("server.mode"),
			CORSOrigins: v.GetStringSlice("server.cors_origins"),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(v.GetString("database.driver")),
			DSN:          v.GetString("database.dsn"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			LogLevel:     v.GetString("database.log_level"),
		},
		Lock: LockConfig{
			Backend:     strings.ToLower(v.GetString("lock.backend")),
			RedisAddr:   v.GetString("lock.redis_addr"),
			Timeout:     v.GetDuration("lock.timeout"),
			MaxAttempts: v.GetInt("lock.max_attempts"),
			RetryBase:   v.GetDuration("lock.retry_base"),
			Expiry:      v.GetDuration("lock.expiry"),
		},
		Approval: ApprovalConfig{
			Approvers: v.GetStringSlice("approval.approvers"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	switch c.Lock.Backend {
	case "local", "redis":
	default:
		return fmt.Errorf("lock.backend must be local or redis, got %q", c.Lock.Backend)
	}
	if c.Lock.Backend == "redis" && c.Lock.RedisAddr == "" {
		return errors.New("lock.redis_addr is required for the redis backend")
	}
	if c.Lock.Timeout <= 0 {
		return errors.New("lock.timeout must be positive")
	}
	if c.Lock.MaxAttempts < 1 {
		return errors.New("lock.max_attempts must be at least 1")
	}
	// A redis lock must outlive the longest critical section.
	if c.Lock.Backend == "redis" && c.Lock.Expiry <= c.Lock.Timeout {
		return errors.New("lock.expiry must exceed lock.timeout")
	}

	return nil
}
