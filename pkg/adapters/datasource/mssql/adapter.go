package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
)

// Dialect is the registered adapter type.
const Dialect = "mssql"

// Adapter runs report statements against SQL Server.
type Adapter struct {
	config *Config
	db     *sql.DB
	logger *zap.Logger
}

var _ datasource.Datasource = (*Adapter)(nil)

// NewAdapter opens a pooled SQL Server connection and verifies it.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("sqlserver", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	logger.Info("Connected to SQL Server datasource",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &Adapter{config: cfg, db: db, logger: logger}, nil
}

// newAdapterWithDB wraps an existing pool. Used by tests.
func newAdapterWithDB(db *sql.DB, logger *zap.Logger) *Adapter {
	return &Adapter{config: &Config{}, db: db, logger: logger}
}

func (a *Adapter) Dialect() string {
	return Dialect
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

	return datasource.CollectRows(rows, normalizeType, convertValue)
}

// AnalyzeSchema reads the output columns of sqlQuery via SELECT TOP 1.
func (a *Adapter) AnalyzeSchema(ctx context.Context, sqlQuery string) ([]datasource.ColumnInfo, error) {
	wrapped := fmt.Sprintf("SELECT TOP 1 * FROM (%s) AS temp", sqlQuery)

	rows, err := a.db.QueryContext(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ColumnsOf(rows, normalizeType)
}

// Ping verifies the connection is alive.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.db.Close()
}
