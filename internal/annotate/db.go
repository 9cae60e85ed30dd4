// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package annotate matches peak pairs against label libraries and
// reference collections, persisting the assignments in a results
// database.
package annotate

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the annotation results database. One DB is shared by all
// annotation stages of a run.
type DB struct {
	db *sql.DB
}

// Open opens or creates the results database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening results database: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Conn exposes the underlying connection for the summary stage.
func (d *DB) Conn() *sql.DB {
	return d.db
}

// recreate drops and recreates a results table. With keep set the drop
// is skipped and the table is created only if missing, so records
// accumulate across runs.
func recreate(ctx context.Context, tx *sql.Tx, name, create string, keep bool) error {
	if !keep {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+name); err != nil {
			return fmt.Errorf("dropping %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	return nil
}
