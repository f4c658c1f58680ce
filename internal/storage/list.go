package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/codewithboateng/pylift/internal/ir"
)

// ListRuns returns a lightweight list of runs with counts.
func (db *DB) ListRuns(limit, offset int) ([]RunRow, error) {
	const q = `
		SELECT r.id, r.started_at, r.source, r.ir_version, r.failures,
		       (SELECT COUNT(1) FROM diagnostics d WHERE d.run_id = r.id) AS diagnostics
		  FROM runs r
		 ORDER BY r.started_at DESC, r.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := db.conn.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var rr RunRow
		var startedAtStr string
		if err := rows.Scan(&rr.ID, &startedAtStr, &rr.Source, &rr.IRVersion, &rr.Failures, &rr.Diagnostics); err != nil {
			return nil, err
		}
		// Parse RFC3339Nano first, fallback to RFC3339
		if t, err := time.Parse(time.RFC3339Nano, startedAtStr); err == nil {
			rr.StartedAt = t
		} else if t2, err2 := time.Parse(time.RFC3339, startedAtStr); err2 == nil {
			rr.StartedAt = t2
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// ListDiagnostics returns diagnostics for a run at or above a minimum
// severity, optionally restricted to one pattern, in report order.
func (db *DB) ListDiagnostics(runID, minSeverity, patternID string) ([]ir.Diagnostic, error) {
	const q = `
		SELECT path, pattern_id, severity, line, col, end_line, end_col, message, suggested_fix
		  FROM diagnostics
		 WHERE run_id = ?
		   AND (CASE severity WHEN 'error' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END)
		       >= (CASE ? WHEN 'error' THEN 3 WHEN 'warning' THEN 2 ELSE 1 END)
		   AND (? = '' OR pattern_id = ?)
		 ORDER BY seq`
	rows, err := db.conn.Query(q, runID, minSeverity, patternID, patternID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ir.Diagnostic
	for rows.Next() {
		var (
			d   ir.Diagnostic
			sev string
			fix sql.NullString
		)
		if err := rows.Scan(&d.Path, &d.PatternID, &sev,
			&d.Span.StartPos.Line, &d.Span.StartPos.Column, &d.Span.EndPos.Line, &d.Span.EndPos.Column,
			&d.Message, &fix); err != nil {
			return nil, err
		}
		d.Severity, _ = ir.ParseSeverity(sev)
		d.SuggestedFix = fix.String
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountByPattern summarizes a run's diagnostics per pattern, most frequent
// first.
func (db *DB) CountByPattern(runID string) ([]PatternCount, error) {
	rows, err := db.conn.Query(`
		SELECT pattern_id, COUNT(1) AS n
		  FROM diagnostics
		 WHERE run_id = ?
		 GROUP BY pattern_id
		 ORDER BY n DESC, pattern_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatternCount
	for rows.Next() {
		var pc PatternCount
		if err := rows.Scan(&pc.PatternID, &pc.Count); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (db *DB) HasRun(id string) (bool, error) {
	const q = `SELECT 1 FROM runs WHERE id = ? LIMIT 1`
	var one int
	err := db.conn.QueryRow(q, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
