// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and ORDERNUM_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every environment override, e.g. ORDERNUM_DB_HOST.
const EnvPrefix = "ORDERNUM_"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the fully resolved service configuration.
type Config struct {
	HTTP        HTTP
	Log         Log
	Store       Store
	DB          Database
	Allocator   Allocator
	Maintenance Maintenance
	NATS        NATS
}

type HTTP struct {
	Port string
}

type Log struct {
	Level string
}

type Store struct {
	Driver string
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN builds a libpq-compatible connection string.
func (c Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Allocator holds the slot recycling policy.
type Allocator struct {
	// Cooldown is how long a released number stays out of circulation.
	Cooldown time.Duration
	// ActiveWindow is the age after which an allocated slot whose order is
	// already terminal is reclaimed.
	ActiveWindow time.Duration
}

type Maintenance struct {
	Enabled  bool
	Interval time.Duration
}

// NATS configures slot event publishing. An empty URL disables it.
type NATS struct {
	URL           string
	SubjectPrefix string
}

func defaults() map[string]any {
	return map[string]any{
		"http.port":               "8080",
		"log.level":               "info",
		"store.driver":            DriverPostgres,
		"db.host":                 "localhost",
		"db.port":                 "5432",
		"db.user":                 "postgres",
		"db.password":             "postgres",
		"db.name":                 "ordernumbers",
		"db.sslmode":              "disable",
		"db.max_conns":            20,
		"allocator.cooldown":      "4h",
		"allocator.active_window": "24h",
		"maintenance.enabled":     true,
		"maintenance.interval":    "15m",
		"nats.url":                "",
		"nats.subject_prefix":     "orders.display_numbers",
	}
}

// Load resolves configuration. configFile may be empty; CONFIG_FILE is used
// when it is.
func Load(configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFile, err)
		}
	}

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		HTTP:  HTTP{Port: k.String("http.port")},
		Log:   Log{Level: k.String("log.level")},
		Store: Store{Driver: strings.ToLower(k.String("store.driver"))},
		DB: Database{
			Host:     k.String("db.host"),
			Port:     k.String("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max_conns")),
		},
		Allocator: Allocator{
			Cooldown:     k.Duration("allocator.cooldown"),
			ActiveWindow: k.Duration("allocator.active_window"),
		},
		Maintenance: Maintenance{
			Enabled:  k.Bool("maintenance.enabled"),
			Interval: k.Duration("maintenance.interval"),
		},
		NATS: NATS{
			URL:           k.String("nats.url"),
			SubjectPrefix: k.String("nats.subject_prefix"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps ORDERNUM_ALLOCATOR_ACTIVE_WINDOW to allocator.active_window.
// Only the first underscore separates section from key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.Allocator.Cooldown < 0 {
		return fmt.Errorf("allocator.cooldown cannot be negative")
	}
	if c.Allocator.ActiveWindow <= 0 {
		return fmt.Errorf("allocator.active_window must be positive")
	}
	if c.Maintenance.Enabled && c.Maintenance.Interval <= 0 {
		return fmt.Errorf("maintenance.interval must be positive when maintenance is enabled")
	}
	if c.DB.MaxConns <= 0 {
		c.DB.MaxConns = 20
	}
	return nil
}
