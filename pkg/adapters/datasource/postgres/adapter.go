package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// Dialect is the registered adapter type.
const Dialect = "postgres"

// Adapter runs report statements against PostgreSQL.
type Adapter struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	ownedPool bool // true if we created the pool
}

var _ datasource.Datasource = (*Adapter)(nil)

// NewAdapter creates a pool from cfg and verifies it.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	logger.Info("Connected to PostgreSQL datasource",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &Adapter{pool: pool, logger: logger, ownedPool: true}, nil
}

// NewAdapterFromPool wraps a pool owned by the caller. Close leaves it open.
func NewAdapterFromPool(pool *pgxpool.Pool, logger *zap.Logger) *Adapter {
	return &Adapter{pool: pool, logger: logger}
}

func (a *Adapter) Dialect() string {
	return Dialect
}

// Query executes the statement; @name placeholders are rewritten by pgx.NamedArgs.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, params map[string]any) (*datasource.QueryResult, error) {
	a.logger.Debug("Executing report query",
		zap.String("sql", logging.SanitizeQuery(sqlQuery)),
		zap.Int("params", len(params)))

	rows, err := a.pool.Query(ctx, sqlQuery, pgx.NamedArgs(params))
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns := columnsOf(rows.FieldDescriptions())

	resultRows := make([]models.ResultRow, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		row := make(models.ResultRow, len(columns))
		for i, col := range columns {
			row[i] = models.Cell{Field: col.Name, Value: convertValue(values[i])}
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryResult{Columns: columns, Rows: resultRows}, nil
}

// AnalyzeSchema reads the output columns of sqlQuery via LIMIT 1.
func (a *Adapter) AnalyzeSchema(ctx context.Context, sqlQuery string) ([]datasource.ColumnInfo, error) {
	wrapped := fmt.Sprintf("SELECT * FROM (%s) AS temp LIMIT 1", sqlQuery)

	rows, err := a.pool.Query(ctx, wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	columns := columnsOf(rows.FieldDescriptions())
	rows.Close()

	// pgx reports server-side errors only after the rows are closed.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return columns, nil
}

// Ping verifies the pool can reach the server.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close releases the pool if this adapter created it.
func (a *Adapter) Close() error {
	if a.ownedPool {
		a.pool.Close()
	}
	return nil
}
