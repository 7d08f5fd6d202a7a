package msqlite

import (
	"context"
	"database/sql"
	"fmt"
)

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		`CREATE TABLE IF NOT EXISTS migrations(
  id INTEGER PRIMARY KEY CHECK (id = 0),
  version INTEGER
);`,
	); err != nil {
		return fmt.Errorf("error getting initial migrations table: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO migrations(id, version) VALUES (0, 0)`,
	); err != nil {
		return fmt.Errorf("error setting initial migration version: %w", err)
	}

	var migrationVersion int
	if err := tx.QueryRowContext(
		ctx, `SELECT version FROM migrations WHERE id=0;`,
	).Scan(&migrationVersion); err != nil {
		return fmt.Errorf("failed to scan migration version: %w", err)
	}

	if err := migrateFrom(ctx, tx, migrationVersion); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}

func migrateFrom(ctx context.Context, tx *sql.Tx, version int) error {
	switch version {
	case 0:
		if err := migrateInitial(ctx, tx); err != nil {
			return fmt.Errorf("initial migration: %w", err)
		}
		if err := setMigrationVersion(ctx, tx, 1); err != nil {
			return err
		}
	case 1:
		// Up to date.
		return nil
	default:
		return fmt.Errorf("unknown migration version %d", version)
	}

	// If we didn't return inside the above switch statement,
	// then we did something with migrations.
	// According to https://sqlite.org/pragma.html#pragma_optimize,
	// "All applications should run `PRAGMA optimize;` after a schema change,
	// especially after one or more CREATE INDEX statements."
	// Creating tables is a schema change, so here we go.
	if _, err := tx.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to run PRAGMA optimize after migration: %w", err)
	}

	return nil
}

func migrateInitial(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(
		ctx,
		// One row per certification round.
		// The entity_key column is the result of [mcert.SignedEntityType.Key];
		// its uniqueness is what enforces "at most one round per signed entity type",
		// even under concurrent creation.
		// The kind, entity_epoch, and entity_block_number columns
		// are the decomposed signed entity type,
		// kept separately so the entity can be reconstituted without parsing the key.
		`
CREATE TABLE open_messages(
  id INTEGER PRIMARY KEY NOT NULL,
  entity_key TEXT NOT NULL UNIQUE,
  uuid TEXT NOT NULL,
  kind INTEGER NOT NULL,
  entity_epoch INTEGER NOT NULL,
  entity_block_number INTEGER NOT NULL,
  epoch INTEGER NOT NULL,
  protocol_message BLOB NOT NULL,
  created_at TEXT NOT NULL,
  status INTEGER NOT NULL,
  certificate_hash TEXT NOT NULL DEFAULT ''
);`+

			// Registered single signatures, one row per (round, party).
			// The uniqueness over (open_message_id, party_id)
			// backs the idempotent duplicate-party registration.
			`
CREATE TABLE single_signatures(
  id INTEGER PRIMARY KEY NOT NULL,
  open_message_id INTEGER NOT NULL,
  party_id TEXT NOT NULL,
  signature BLOB NOT NULL,
  won_indexes BLOB NOT NULL,
  FOREIGN KEY(open_message_id) REFERENCES open_messages(id),
  UNIQUE (open_message_id, party_id)
);`+

			// Finished certificates, in insertion order.
			// The body column is the JSON-encoded certificate;
			// hash and epoch are duplicated out of the body for lookups.
			`
CREATE TABLE certificates(
  id INTEGER PRIMARY KEY NOT NULL,
  hash TEXT NOT NULL UNIQUE,
  epoch INTEGER NOT NULL,
  body BLOB NOT NULL
);
CREATE INDEX certificates_epoch ON certificates(epoch);`,
	)
	return err
}

func setMigrationVersion(ctx context.Context, tx *sql.Tx, version int) error {
	if _, err := tx.ExecContext(
		ctx, `UPDATE migrations SET version = ? WHERE id = 0`, version,
	); err != nil {
		return fmt.Errorf("failed to set migration version to %d: %w", version, err)
	}
	return nil
}
