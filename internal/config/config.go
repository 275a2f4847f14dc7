// Package config loads the server configuration from flags, environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	Port               int
	JWTSecret          string
	TokenTTL           time.Duration
	Store              string
	DSN                string
	BcryptCost         int
	SubscriptionBuffer int
	LogLevel           string
	Dev                bool
}

// Register defines every configuration key as a flag on fs.
func Register(fs *pflag.FlagSet) {
	fs.String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden by environment variables and flags.")
	fs.Int("port", 4000, "HTTP listen port.")
	fs.String("jwt_secret", "", "Secret used to sign and verify tokens. Required.")
	fs.Duration("token_ttl", 7*24*time.Hour, "Lifetime of issued tokens.")
	fs.String("store", StoreSQLite, "Storage backend, one of [memory, sqlite, postgres].")
	fs.String("dsn", "./data/blog.db", "Database file (sqlite) or connection string (postgres).")
	fs.Int("bcrypt_cost", bcrypt.DefaultCost, "bcrypt cost for password hashes.")
	fs.Int("subscription_buffer", 16, "Events buffered per subscriber before dropping.")
	fs.String("log_level", "info", "Log level, one of [debug, info, warn, error].")
	fs.Bool("dev", false, "Human readable development logging.")
}

// NewViper binds fs and the environment into a fresh viper instance and
// reads the config file named by --config, if any.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "binding flags")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", file)
		}
	}
	return v, nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Port:               v.GetInt("port"),
		JWTSecret:          v.GetString("jwt_secret"),
		TokenTTL:           v.GetDuration("token_ttl"),
		Store:              strings.ToLower(v.GetString("store")),
		DSN:                v.GetString("dsn"),
		BcryptCost:         v.GetInt("bcrypt_cost"),
		SubscriptionBuffer: v.GetInt("subscription_buffer"),
		LogLevel:           v.GetString("log_level"),
		Dev:                v.GetBool("dev"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return errors.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.DSN == "" {
			return errors.Errorf("dsn is required for store %s", c.Store)
		}
	default:
		return errors.Errorf("unknown store %q", c.Store)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return errors.Errorf("bcrypt_cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SubscriptionBuffer <= 0 {
		return errors.Errorf("subscription_buffer must be positive, got %d", c.SubscriptionBuffer)
	}
	return nil
}
