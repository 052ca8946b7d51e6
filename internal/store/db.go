package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go-tweet-pipeline/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite run store. It records runs, their errors and stage
// progress, and can hold exported tables.
type DB struct {
	db *sql.DB
}

// InitDB opens the database at dbPath and creates the run tables.
func InitDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);
	`
	errorTable := `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		error_message TEXT,
		created_at DATETIME
	);
	`
	stageTable := `
	CREATE TABLE IF NOT EXISTS stage_progress (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		stage TEXT,
		status TEXT,
		rows_in INTEGER,
		rows_out INTEGER,
		started_at DATETIME,
		ended_at DATETIME
	);
	`

	for _, ddl := range []string{runTable, errorTable, stageTable} {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pipeline run
func (s *DB) SaveRun(runID string, spec model.PipelineSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), "pending", now, now)
	return err
}

// SaveRunError records an error for a run
func (s *DB) SaveRunError(runID, stage string, err error) error {
	if err == nil {
		return nil
	}
	now := time.Now().UTC()
	_, e := s.db.Exec(`INSERT INTO run_errors (run_id, stage, error_message, created_at) VALUES (?, ?, ?, ?)`,
		runID, stage, err.Error(), now)
	return e
}

// SaveStageProgress records the state of one stage of a run
func (s *DB) SaveStageProgress(runID string, stage model.StageMetrics) error {
	var ended interface{}
	if !stage.EndTime.IsZero() {
		ended = stage.EndTime.UTC()
	}
	_, err := s.db.Exec(`INSERT INTO stage_progress (run_id, stage, status, rows_in, rows_out, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stage.StageName, stage.Status, stage.RowsIn, stage.RowsOut, stage.StartTime.UTC(), ended)
	return err
}

// UpdateRunStatus updates run status
func (s *DB) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	return err
}

// ListRuns returns all runs with basic info
func (s *DB) ListRuns() ([]map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT id, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return runs, rows.Err()
}

// GetRun fetches the stored run configuration and status
func (s *DB) GetRun(runID string) (map[string]interface{}, error) {
	var specJSON string
	var status string
	var createdAt, updatedAt time.Time

	err := s.db.QueryRow(`SELECT spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.PipelineSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        runID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// GetRunErrors returns the error messages recorded for a run, oldest first
func (s *DB) GetRunErrors(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT error_message FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// SaveTable appends the rows of t to the named table, creating it from the
// column schema when needed. Rows are tagged with the run ID and their index.
func (s *DB) SaveTable(ctx context.Context, name string, runID string, t *model.Table) (int, error) {
	if err := checkIdentifier(name); err != nil {
		return 0, err
	}

	defs := []string{"run_id TEXT NOT NULL", "row_index INTEGER NOT NULL"}
	cols := []string{"run_id", "row_index"}
	for _, c := range t.Columns {
		if err := checkIdentifier(c.Name); err != nil {
			return 0, err
		}
		defs = append(defs, fmt.Sprintf("%s %s", c.Name, sqliteType(c.Type)))
		cols = append(cols, c.Name)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range t.Rows {
		args := make([]interface{}, 0, len(cols))
		args = append(args, runID, i)
		for j, v := range r {
			val, err := looseValue(v)
			if err != nil {
				return 0, fmt.Errorf("row %d: column %s: %w", i, t.Columns[j].Name, err)
			}
			args = append(args, val)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return t.Len(), nil
}

// CountRows returns how many rows of the named table belong to a run
func (s *DB) CountRows(ctx context.Context, name string, runID string) (int, error) {
	if err := checkIdentifier(name); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE run_id = ?", name), runID).Scan(&n)
	return n, err
}
