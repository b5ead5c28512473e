package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/doeshing/riskgate/internal/ports"
)

// PostgresStore shares descriptors between hosts through PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgres wraps an open handle. The schema is not touched; call Migrate.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore: sqlStore{db: db, dialect: postgresDialect}}
}

// OpenPostgres connects with lib/pq and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires store.dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgres(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

var _ ports.Store = (*PostgresStore)(nil)
