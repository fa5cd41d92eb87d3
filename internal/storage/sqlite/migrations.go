package sqlite

import (
	"database/sql"
	"fmt"
)

const schemaVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'student'
                  CHECK(role IN ('instructor','student'))
);

CREATE TABLE IF NOT EXISTS labs (
    lab_id          INTEGER PRIMARY KEY,
    title           TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    expected_output TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
    session_id INTEGER PRIMARY KEY,
    user_id    INTEGER NOT NULL,
    lab_id     INTEGER NOT NULL,
    code       TEXT NOT NULL DEFAULT '',
    output     TEXT NOT NULL DEFAULT '',
    score      INTEGER,
    timestamp  TEXT NOT NULL DEFAULT ''
);
`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_sessions_timestamp ON sessions(timestamp DESC);
`

// schemaV2 records the sandbox outcome alongside each graded session.
const schemaV2 = `
ALTER TABLE sessions ADD COLUMN outcome TEXT NOT NULL DEFAULT '';
`

// column is a declared column that legacy tables may be missing.
type column struct {
	name string
	decl string
}

// declaredColumns lists, per table, every column the store reads. Tables
// created by older tooling are topped up with empty defaults on open.
var declaredColumns = map[string][]column{
	"users": {
		{"name", "TEXT NOT NULL DEFAULT ''"},
		{"email", "TEXT NOT NULL DEFAULT ''"},
		{"password_hash", "TEXT NOT NULL DEFAULT ''"},
		{"role", "TEXT NOT NULL DEFAULT 'student'"},
	},
	"labs": {
		{"title", "TEXT NOT NULL DEFAULT ''"},
		{"description", "TEXT NOT NULL DEFAULT ''"},
		{"expected_output", "TEXT NOT NULL DEFAULT ''"},
	},
	"sessions": {
		{"user_id", "INTEGER NOT NULL DEFAULT 0"},
		{"lab_id", "INTEGER NOT NULL DEFAULT 0"},
		{"code", "TEXT NOT NULL DEFAULT ''"},
		{"output", "TEXT NOT NULL DEFAULT ''"},
		{"score", "INTEGER"},
		{"timestamp", "TEXT NOT NULL DEFAULT ''"},
		{"outcome", "TEXT NOT NULL DEFAULT ''"},
	},
}

func runMigrations(db *sql.DB) error {
	// Check current version
	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		// Table doesn't exist or is empty: run initial schema
		current = 0
	}

	if current < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return fmt.Errorf("schema v1: %w", err)
		}
	}
	if current < 2 {
		has, err := hasColumn(db, "sessions", "outcome")
		if err != nil {
			return err
		}
		if !has {
			if _, err := db.Exec(schemaV2); err != nil {
				return fmt.Errorf("schema v2: %w", err)
			}
		}
	}

	// Tables written by older tooling may predate some columns.
	if err := reconcileColumns(db); err != nil {
		return err
	}
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	// Upsert schema version
	_, err := db.Exec(`
		DELETE FROM schema_version;
		INSERT INTO schema_version (version) VALUES (?);
	`, schemaVersion)
	return err
}

// reconcileColumns adds any declared column absent from an existing table.
func reconcileColumns(db *sql.DB) error {
	for _, table := range []string{"users", "labs", "sessions"} {
		for _, col := range declaredColumns[table] {
			has, err := hasColumn(db, table, col.name)
			if err != nil {
				return err
			}
			if has {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.decl)
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("adding column %s.%s: %w", table, col.name, err)
			}
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, name string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}
