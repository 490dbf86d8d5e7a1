// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package database implements the transaction ledger on DuckDB.
//
// The relay persists exactly one entity: the transaction record keyed by
// request ID. DuckDB runs embedded, so the store needs no external service;
// the engine guarantees atomic single-row create/update, which is the only
// consistency the relay relies on.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/payflux/payflux/internal/config"
	"github.com/payflux/payflux/internal/logging"
	"github.com/payflux/payflux/internal/metrics"
)

// DB wraps the DuckDB connection and provides ledger access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the DuckDB database at the configured path and initializes the
// schema. The parent directory is created if it does not exist.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// 0750 per gosec G301
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable extension auto-install/auto-load; the ledger schema only
	// needs core types and restricted networks can hang on installs.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	db.configureConnectionPool()

	if err := db.initSchema(context.Background()); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// configureConnectionPool applies pool limits tuned for an embedded engine.
func (db *DB) configureConnectionPool() {
	maxConns := runtime.NumCPU()
	if maxConns < 2 {
		maxConns = 2
	}
	db.conn.SetMaxOpenConns(maxConns)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use in error paths where Close() errors are not actionable.
func closeQuietly(conn *sql.DB) {
	if conn != nil {
		_ = conn.Close()
	}
}

// observeQuery records a ledger operation's duration and outcome, and
// logs slow queries at debug level. Domain sentinels are expected
// outcomes, not query errors.
func observeQuery(operation string, start time.Time, err error) {
	elapsed := time.Since(start)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		err = nil
	}
	metrics.RecordDBQuery(operation, elapsed, err)
	if elapsed > 100*time.Millisecond {
		logging.Debug().Str("operation", operation).Dur("elapsed", elapsed).Msg("Slow ledger query")
	}
}
