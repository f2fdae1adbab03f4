// Package database keeps a history of pipeline runs in SQLite.
package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZanzyTHEbar/quizstat/internal/errors"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool applies pool limits to db
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Open opens or creates the history database at path.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.NewValidationError("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewInternalError("create history directory for "+path, err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.NewInternalError("open history database "+path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.NewFormatError(path, "not a usable SQLite database", err)
	}

	// SQLite serialises writers; a small pool avoids busy errors.
	pool := NewConnectionPool(db, 4, 2, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := database.initPreparedStatements(); err != nil {
		_ = database.Close()
		return nil, err
	}

	slog.Debug("History database opened", "path", path, "max_open_conns", pool.maxOpenConns)
	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			stage TEXT NOT NULL,
			failed BOOLEAN NOT NULL DEFAULT FALSE,
			respondents INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			answered_questions INTEGER NOT NULL DEFAULT 0,
			overall_mean REAL NOT NULL DEFAULT 0,
			randomness_score REAL NOT NULL DEFAULT 0,
			trend_correlation REAL NOT NULL DEFAULT 0,
			findings INTEGER NOT NULL DEFAULT 0,
			hypothesis TEXT NOT NULL DEFAULT '',
			results BLOB NOT NULL -- zstd-compressed JSON results document
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return errors.NewInternalError("migrate history database", err)
		}
	}
	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_run": `INSERT INTO runs (
			run_id, started_at, finished_at, stage, failed, respondents, skipped,
			answered_questions, overall_mean, randomness_score, trend_correlation,
			findings, hypothesis, results
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			finished_at = excluded.finished_at,
			stage = excluded.stage,
			failed = excluded.failed,
			results = excluded.results`,

		"list_runs": `SELECT run_id, started_at, finished_at, stage, failed, respondents, skipped,
			answered_questions, overall_mean, randomness_score, trend_correlation,
			findings, hypothesis
			FROM runs ORDER BY started_at DESC LIMIT ?`,

		"get_results": `SELECT results FROM runs WHERE run_id = ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return errors.NewInternalError("prepare statement "+name, err)
		}
		db.prepared[name] = stmt
	}
	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, errors.NewInternalError("prepared statement "+name+" not found", nil)
	}
	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
