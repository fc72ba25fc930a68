// Package sqlite runs reports against a SQLite file or in-memory database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
)

const (
	// Dialect is the registered adapter type.
	Dialect = "sqlite"

	driverSqlite = "sqlite"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

// Config contains SQLite connection options.
type Config struct {
	Path         string
	MaxOpenConns int
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{}
	if path, ok := config["path"].(string); ok && path != "" {
		cfg.Path = path
	} else {
		return nil, fmt.Errorf("path is required")
	}
	if maxOpen, ok := config["max_open"].(int); ok {
		cfg.MaxOpenConns = maxOpen
	}
	return cfg, nil
}

// Adapter runs report statements against SQLite.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// NewAdapter opens the database at cfg.Path.
// An in-memory database is limited to one connection so every statement sees
// the same data.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	db, err := sql.Open(driverSqlite, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch {
	case cfg.Path == MemoryPath:
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Opened SQLite datasource", zap.String("path", cfg.Path))

	return &Adapter{db: db, logger: logger}, nil
}

func (a *Adapter) Dialect() string {
	return Dialect
}

// DB returns the underlying pool, e.g. for loading fixture data.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Query executes the statement with @name parameters bound via sql.Named.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, params map[string]any) (*datasource.QueryResult, error) {
	a.logger.Debug("Executing report query",
		zap.String("sql", logging.SanitizeQuery(sqlQuery)),
		zap.Int("params", len(params)))

	rows, err := a.db.QueryContext(ctx, sqlQuery, datasource.NamedArgs(params)...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.CollectRows(rows, normalizeType, nil)
}

// AnalyzeSchema reads the output columns of sqlQuery via LIMIT 1.
func (a *Adapter) AnalyzeSchema(ctx context.Context, sqlQuery string) ([]datasource.ColumnInfo, error) {
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS temp LIMIT 1", sqlQuery)

	rows, err := a.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ColumnsOf(rows, normalizeType)
}

// Ping verifies the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// normalizeType maps SQLite declared column types onto the names report
// schema analysis classifies. Expression columns have no declared type.
func normalizeType(declared string) string {
	declared = strings.ToUpper(strings.TrimSpace(declared))

	switch {
	case declared == "":
		return "UNKNOWN"
	case strings.HasPrefix(declared, "NUMERIC"), strings.HasPrefix(declared, "DECIMAL"):
		return "DECIMAL"
	case declared == "REAL", strings.HasPrefix(declared, "DOUBLE"), strings.HasPrefix(declared, "FLOAT"):
		return "FLOAT"
	case declared == "BLOB":
		return datasource.BinaryType
	case declared == "BOOLEAN", declared == "BOOL":
		return "BOOLEAN"
	default:
		return declared
	}
}

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        Dialect,
			DisplayName: "SQLite",
			Description: "Run reports against a local SQLite database file",
		},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (datasource.Datasource, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
