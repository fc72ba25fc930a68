package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-reports.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" env-default:"120s"`

	// Engine database (PostgreSQL) holding report templates
	Database DatabaseConfig `yaml:"database"`

	// Datasource the report templates run against
	Datasource DatasourceConfig `yaml:"datasource"`

	// Optional Redis for dropdown option caching
	Redis RedisConfig `yaml:"redis"`

	Reports ReportsConfig `yaml:"reports"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_reports"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DatasourceConfig describes the database report templates are executed against.
// Type selects a registered adapter: "mssql", "postgres" or "sqlite".
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"mssql"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"`
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	// Path is the database file for sqlite (":memory:" allowed).
	Path    string `yaml:"path" env:"DATASOURCE_PATH" env-default:""`
	SSLMode string `yaml:"ssl_mode" env:"DATASOURCE_SSLMODE" env-default:""`
	Encrypt bool   `yaml:"encrypt" env:"DATASOURCE_ENCRYPT" env-default:"false"`
	// TrustServerCertificate skips certificate validation on encrypted SQL Server links.
	TrustServerCertificate bool `yaml:"trust_server_certificate" env:"DATASOURCE_TRUST_SERVER_CERTIFICATE" env-default:"false"`
	// PoolMaxConns is the maximum number of open connections to the datasource.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
}

// RedisConfig holds Redis connection settings. An empty host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// ReportsConfig holds report engine behaviour switches.
type ReportsConfig struct {
	// StrictIdentifiers validates filter keys, group-by and aggregate fields
	// against the template's declared fields before they are written into SQL.
	StrictIdentifiers bool `yaml:"strict_identifiers" env:"REPORTS_STRICT_IDENTIFIERS" env-default:"false"`

	// OptionCacheTTL controls how long dropdown options stay in Redis.
	OptionCacheTTL time.Duration `yaml:"option_cache_ttl" env:"REPORTS_OPTION_CACHE_TTL" env-default:"5m"`

	// RunMigrations applies embedded engine migrations at startup.
	RunMigrations bool `yaml:"run_migrations" env:"REPORTS_RUN_MIGRATIONS" env-default:"true"`

	// SeedFile is an optional YAML file of templates created at startup when missing.
	SeedFile string `yaml:"seed_file" env:"REPORTS_SEED_FILE" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; defaults and environment variables apply.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile reads configuration from the given path with environment variable overrides.
func LoadFile(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Datasource.Type {
	case "mssql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported datasource type %q", c.Datasource.Type)
	}
	if c.Datasource.Type == "sqlite" && c.Datasource.Path == "" {
		return fmt.Errorf("datasource path is required for sqlite")
	}
	return nil
}

// IsLocal reports whether the server runs in a local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// ConnectionString returns a PostgreSQL URL for the engine database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, url.QueryEscape(c.Database), c.SSLMode,
	)
}

// AsMap flattens the datasource settings into the generic map consumed by
// adapter factories.
func (c *DatasourceConfig) AsMap() map[string]any {
	m := map[string]any{
		"host":                     c.Host,
		"user":                     c.User,
		"password":                 c.Password,
		"database":                 c.Database,
		"encrypt":                  c.Encrypt,
		"trust_server_certificate": c.TrustServerCertificate,
		"max_open":                 int(c.PoolMaxConns),
	}
	if c.Port != 0 {
		m["port"] = c.Port
	}
	if c.Path != "" {
		m["path"] = c.Path
	}
	if c.SSLMode != "" {
		m["ssl_mode"] = c.SSLMode
	}
	return m
}
