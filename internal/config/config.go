// Package config loads runtime configuration for the ERP data layer.
//
// Values come from (in order of precedence) environment variables prefixed
// with ERP_, an optional YAML file and built-in defaults. A .env file in the
// working directory is loaded into the environment first when present.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config is the root configuration
type Config struct {
	Database     Database     `mapstructure:"database"`
	Log          Log          `mapstructure:"log"`
	Server       Server       `mapstructure:"server"`
	Provisioning Provisioning `mapstructure:"provisioning"`
}

// Database holds connection parameters for the relational store.
type Database struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	// Path is the database file used by the sqlite driver.
	Path string `mapstructure:"path"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// Log controls log level and the rotating log file.
type Log struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Server is the JSON API listener.
type Server struct {
	Bind           string        `mapstructure:"bind"`
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// AllowedSubnet limits which peers may connect, in CIDR form. Empty allows all.
	AllowedSubnet  string        `mapstructure:"allowed_subnet"`
}

// Provisioning tunes generated credentials for partner accounts.
type Provisioning struct {
	PasswordLength       int    `mapstructure:"password_length"`
	UsernamePrefixLength int    `mapstructure:"username_prefix_length"`
	UsernameSuffixDigits int    `mapstructure:"username_suffix_digits"`
	DefaultRole          string `mapstructure:"default_role"`
	RegistrationRole     string `mapstructure:"registration_role"`
	AutoUser             bool   `mapstructure:"auto_user"`
	BcryptCost           int    `mapstructure:"bcrypt_cost"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver:          DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			User:            "erp",
			Name:            "erp_project_db",
			Path:            "./erp.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    30 * time.Second,
		},
		Log: Log{
			Level:      "info",
			File:       "erp.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Server: Server{
			Bind:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
		},
		Provisioning: Provisioning{
			PasswordLength:       8,
			UsernamePrefixLength: 10,
			UsernameSuffixDigits: 4,
			DefaultRole:          "Partner_User",
			RegistrationRole:     "Partner",
			AutoUser:             true,
			BcryptCost:           12,
		},
	}
}

// Load reads configuration from path (optional), the environment and defaults.
// An explicit path that cannot be read is an error; a missing default file is not.
func Load(path string) (*Config, error) {
	// Optional .env for local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("erp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/erp")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.user", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.name", d.Database.Name)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.query_timeout", d.Database.QueryTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.allowed_subnet", d.Server.AllowedSubnet)

	v.SetDefault("provisioning.password_length", d.Provisioning.PasswordLength)
	v.SetDefault("provisioning.username_prefix_length", d.Provisioning.UsernamePrefixLength)
	v.SetDefault("provisioning.username_suffix_digits", d.Provisioning.UsernameSuffixDigits)
	v.SetDefault("provisioning.default_role", d.Provisioning.DefaultRole)
	v.SetDefault("provisioning.registration_role", d.Provisioning.RegistrationRole)
	v.SetDefault("provisioning.auto_user", d.Provisioning.AutoUser)
	v.SetDefault("provisioning.bcrypt_cost", d.Provisioning.BcryptCost)
}

// Validate checks values that would otherwise fail late at connect time.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the %s driver", DriverMySQL)
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port: %d", c.Database.Port)
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the %s driver", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (use %s or %s)", c.Database.Driver, DriverMySQL, DriverSQLite)
	}

	if c.Server.AllowedSubnet != "" {
		if _, _, err := net.ParseCIDR(c.Server.AllowedSubnet); err != nil {
			return fmt.Errorf("invalid server.allowed_subnet %q: %w", c.Server.AllowedSubnet, err)
		}
	}

	if c.Provisioning.PasswordLength < 6 {
		return fmt.Errorf("provisioning.password_length must be at least 6, got %d", c.Provisioning.PasswordLength)
	}
	if c.Provisioning.UsernamePrefixLength <= 0 {
		return fmt.Errorf("provisioning.username_prefix_length must be positive")
	}
	if c.Provisioning.UsernameSuffixDigits < 0 {
		return fmt.Errorf("provisioning.username_suffix_digits must not be negative")
	}
	return nil
}
