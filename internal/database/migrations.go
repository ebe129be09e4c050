package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    source TEXT NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('free', 'fixed')),
    items INTEGER NOT NULL,
    categories INTEGER NOT NULL,
    raters INTEGER NOT NULL,
    percent_agreement REAL NOT NULL,
    kappa REAL NOT NULL,
    ci_lower REAL NOT NULL,
    ci_upper REAL NOT NULL,
    chance_agreement REAL NOT NULL,
    std_error REAL NOT NULL,
    confidence REAL NOT NULL,
    category_labels TEXT,
    computed_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_runs_computed ON runs(computed_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "record matcher and per-item agreement",
		Up: func(tx *sql.Tx) error {
			if err := addColumnIfMissing(tx, "runs", "matcher", "TEXT NOT NULL DEFAULT 'substring'"); err != nil {
				return err
			}
			return addColumnIfMissing(tx, "runs", "item_agreement", "TEXT")
		},
	},
}

// addColumnIfMissing keeps ALTER TABLE migrations re-runnable.
func addColumnIfMissing(tx *sql.Tx, table, column, decl string) error {
	rows, err := tx.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = tx.Exec("ALTER TABLE " + table + " ADD COLUMN " + column + " " + decl)
	return err
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
