package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope holds one pooled connection for the duration of a single operation.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool. Safe to call more than once.
func (s *Scope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	s.Conn.Release()
	s.Conn = nil
}

// WithScope acquires a connection for one logical operation.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) WithScope(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Scope{Conn: conn}, nil
}
