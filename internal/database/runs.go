package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const runColumns = `id, run_id, source, kind, matcher, items, categories, raters,
	percent_agreement, kappa, ci_lower, ci_upper, chance_agreement, std_error,
	confidence, category_labels, item_agreement, computed_at`

// InsertRun stores a run and returns its public run ID. A run ID is
// generated when r.RunID is empty.
func (db *DB) InsertRun(r *Run) (string, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	labels, err := json.Marshal(r.CategoryLabels)
	if err != nil {
		return "", fmt.Errorf("encoding category labels: %w", err)
	}
	agreement, err := json.Marshal(r.ItemAgreement)
	if err != nil {
		return "", fmt.Errorf("encoding item agreement: %w", err)
	}

	result, err := db.conn.Exec(
		`INSERT INTO runs
		(run_id, source, kind, matcher, items, categories, raters,
		percent_agreement, kappa, ci_lower, ci_upper, chance_agreement, std_error,
		confidence, category_labels, item_agreement)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Source, r.Kind, r.Matcher, r.Items, r.Categories, r.Raters,
		r.PercentAgreement, r.Kappa, r.CILower, r.CIUpper, r.ChanceAgreement, r.StdErr,
		r.Confidence, string(labels), string(agreement),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	r.ID, _ = result.LastInsertId()
	return r.RunID, nil
}

// GetRun returns a run by its public ID, or nil if none exists.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetRecentRuns returns the newest runs first. limit <= 0 returns all runs.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY computed_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// GetRunsForSource returns all runs computed from one input, newest first.
func (db *DB) GetRunsForSource(source string) ([]Run, error) {
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM runs WHERE source = ? ORDER BY computed_at DESC, id DESC", source,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

// DeleteRun removes a run. It reports whether a row was deleted.
func (db *DB) DeleteRun(runID string) (bool, error) {
	result, err := db.conn.Exec("DELETE FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.TotalRuns},
		{"SELECT COUNT(DISTINCT source) FROM runs", &s.Sources},
		{"SELECT COUNT(*) FROM runs WHERE kind = 'free'", &s.FreeRuns},
		{"SELECT COUNT(*) FROM runs WHERE kind = 'fixed'", &s.FixedRuns},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	if err := db.conn.QueryRow("SELECT AVG(kappa), MAX(computed_at) FROM runs").Scan(&s.MeanKappa, &s.LastRunAt); err != nil {
		return nil, err
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var labels, agreement *string
	if err := s.Scan(&r.ID, &r.RunID, &r.Source, &r.Kind, &r.Matcher,
		&r.Items, &r.Categories, &r.Raters,
		&r.PercentAgreement, &r.Kappa, &r.CILower, &r.CIUpper,
		&r.ChanceAgreement, &r.StdErr, &r.Confidence,
		&labels, &agreement, &r.ComputedAt); err != nil {
		return nil, err
	}

	if labels != nil {
		if err := json.Unmarshal([]byte(*labels), &r.CategoryLabels); err != nil {
			r.CategoryLabels = nil
		}
	}
	if agreement != nil {
		if err := json.Unmarshal([]byte(*agreement), &r.ItemAgreement); err != nil {
			r.ItemAgreement = nil
		}
	}
	return &r, nil
}

// FormatComputedAt formats a stored SQLite timestamp for display,
// e.g. "Oct 16, 2026 14:05". Unparseable values are returned unchanged.
func FormatComputedAt(ts *string) string {
	if ts == nil {
		return ""
	}
	t, err := time.Parse("2006-01-02 15:04:05", *ts)
	if err != nil {
		return *ts
	}
	return t.Format("Jan 02, 2006 15:04")
}
