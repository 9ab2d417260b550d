// SPDX-License-Identifier: MIT

// Package store is the relational persistence layer: tenant-scoped
// repositories over a single SQLite database in WAL mode. Every query on
// owned data filters by tenant_id; a row owned by another tenant is
// indistinguishable from a missing one.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver

	"github.com/coursesmith/coursesmith/internal/log"
)

// Config defines SQLite operational parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig returns the recommended pool configuration.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// Store bundles the database handle and its repositories.
type Store struct {
	db *sql.DB

	Tenants   *TenantRepo
	APIKeys   *APIKeyRepo
	Courses   *CourseRepo
	Materials *MaterialRepo
	Jobs      *JobRepo
	LLMCalls  *LLMCallRepo
	Snapshots *SnapshotRepo
	Mappings  *MappingRepo
}

// Open initializes the connection pool with mandatory PRAGMAs and runs
// pending migrations. The _pragma DSN form applies them to every pooled
// connection.
func Open(dbPath string, cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open failed: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping failed: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	s.Tenants = &TenantRepo{db: db}
	s.APIKeys = &APIKeyRepo{db: db}
	s.Courses = &CourseRepo{db: db}
	s.Materials = &MaterialRepo{db: db}
	s.Jobs = &JobRepo{db: db}
	s.LLMCalls = &LLMCallRepo{db: db}
	s.Snapshots = &SnapshotRepo{db: db}
	s.Mappings = &MappingRepo{db: db}
	return s, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for cross-repo transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies schema versions tracked via PRAGMA user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: bump schema version to %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", v+1, err)
		}
		log.WithComponent("store").Info().Int("schema_version", v+1).Msg("migration applied")
	}
	return nil
}
