package store

import (
	"context"
	"fmt"
	"strings"

	"go-tweet-pipeline/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore writes exported tables to PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a connection pool for connStr. The pool connects
// lazily; call Ping to check the database is reachable.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Ping checks that the database accepts connections.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// SaveTable copies the rows of t into the named table within a single
// transaction. Values must already match the column types, so the table
// should have been through timestamp and numeric conversion.
func (s *PostgresStore) SaveTable(ctx context.Context, name string, runID string, t *model.Table) (int, error) {
	if err := checkIdentifier(name); err != nil {
		return 0, err
	}

	defs := []string{"run_id TEXT NOT NULL", "row_index INTEGER NOT NULL"}
	cols := []string{"run_id", "row_index"}
	for _, c := range t.Columns {
		if err := checkIdentifier(c.Name); err != nil {
			return 0, err
		}
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), postgresType(c.Type)))
		cols = append(cols, c.Name)
	}

	rows := make([][]interface{}, 0, t.Len())
	for i, r := range t.Rows {
		values := make([]interface{}, 0, len(cols))
		values = append(values, runID, int32(i))
		for j, v := range r {
			val, err := strictValue(t.Columns[j], v)
			if err != nil {
				return 0, fmt.Errorf("row %d: %w", i, err)
			}
			values = append(values, val)
		}
		rows = append(rows, values)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", name, err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{name}, cols, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy rows into %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(copied), nil
}

// CountRows returns how many rows of the named table belong to a run
func (s *PostgresStore) CountRows(ctx context.Context, name string, runID string) (int, error) {
	if err := checkIdentifier(name); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = $1", pgx.Identifier{name}.Sanitize()),
		runID,
	).Scan(&n)
	return n, err
}
