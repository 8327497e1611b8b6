// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/ManuGH/dialwatch/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

// SQLiteStore keeps saved data in a key/value table.
type SQLiteStore struct {
	DB *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at dbPath. An
// existing file must pass a quick integrity check first.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err == nil {
		issues, err := sqlite.VerifyIntegrity(ctx, dbPath, false)
		if err != nil {
			return nil, fmt.Errorf("app store: verify %s: %w", dbPath, err)
		}
		if issues != nil {
			return nil, fmt.Errorf("app store: %s is corrupt: %v", dbPath, issues)
		}
	}

	db, err := sqlite.Open(ctx, dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{DB: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("app store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS saved_data (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at_ms INTEGER NOT NULL
	);`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx, "SELECT value FROM saved_data WHERE key = ?", SavedDataKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("app store: load: %w", err)
	}
	return decodeApps([]byte(raw))
}

func (s *SQLiteStore) Save(ctx context.Context, apps []string) error {
	raw, err := encodeApps(apps)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO saved_data (key, value, updated_at_ms) VALUES (?, ?, strftime('%s','now') * 1000)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms`,
		SavedDataKey, string(raw))
	if err != nil {
		return fmt.Errorf("app store: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.DB.Close() }
