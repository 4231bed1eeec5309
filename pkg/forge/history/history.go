// Package history keeps a local record of provisioning runs in SQLite so
// past agents can be listed without querying the registry or HANA.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one completed (or failed) agent creation run.
type Run struct {
	ID         int64
	AgentID    string
	AgentName  string
	Customer   string
	UseCase    string
	SchemaName string
	AgentURL   string
	ToolStatus string
	Status     string
	Error      string
	CreatedAt  time.Time
}

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Store is the SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database and applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/scenarioforge.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			customer TEXT NOT NULL,
			use_case TEXT NOT NULL,
			schema_name TEXT NOT NULL,
			agent_url TEXT NOT NULL DEFAULT '',
			tool_status TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

// Record inserts a run and returns its id.
func (s *Store) Record(run Run) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO runs (agent_id, agent_name, customer, use_case, schema_name, agent_url, tool_status, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.AgentID, run.AgentName, run.Customer, run.UseCase, run.SchemaName,
		run.AgentURL, run.ToolStatus, run.Status, run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return result.LastInsertId()
}

// List returns the most recent runs, newest first.
func (s *Store) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, agent_id, agent_name, customer, use_case, schema_name, agent_url, tool_status, status, error, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.AgentID, &run.AgentName, &run.Customer, &run.UseCase,
			&run.SchemaName, &run.AgentURL, &run.ToolStatus, &run.Status, &run.Error, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
