package storage

import "time"

// RunRow is a lightweight listing row for /runs.
type RunRow struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Source      string    `json:"source,omitempty"`
	IRVersion   string    `json:"ir_version,omitempty"`
	Diagnostics int       `json:"diagnostics"`
	Failures    int       `json:"failures"`
}

// PatternCount is one row of a per-pattern summary.
type PatternCount struct {
	PatternID string `json:"pattern_id"`
	Count     int    `json:"count"`
}
