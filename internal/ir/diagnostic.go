package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Position is a 1-based line and column. Columns count bytes.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Span is a half-open byte range [Start, End) plus its positions.
type Span struct {
	Start    uint32   `json:"start"`
	End      uint32   `json:"end"`
	StartPos Position `json:"start_pos"`
	EndPos   Position `json:"end_pos"`
}

func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.StartPos, s.EndPos)
}

// Severity of a pattern or diagnostic.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity accepts info/warning/error (case-insensitive; "warn" too).
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SevInfo, nil
	case "warning", "warn":
		return SevWarning, nil
	case "error":
		return SevError, nil
	}
	return SevInfo, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Diagnostic is one detector finding. Values are built once by the engine
// and never mutated afterwards.
type Diagnostic struct {
	Path         string   `json:"path"`
	PatternID    string   `json:"pattern_id"`
	Severity     Severity `json:"severity"`
	Span         Span     `json:"span"`
	Message      string   `json:"message"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s [%s] %s",
		d.Path, d.Span.StartPos.Line, d.Span.StartPos.Column, d.Severity, d.PatternID, d.Message)
}

// Less orders diagnostics by path, start line, start column and pattern id.
// End offset breaks remaining ties so the order is total.
func Less(a, b Diagnostic) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Span.StartPos.Line != b.Span.StartPos.Line {
		return a.Span.StartPos.Line < b.Span.StartPos.Line
	}
	if a.Span.StartPos.Column != b.Span.StartPos.Column {
		return a.Span.StartPos.Column < b.Span.StartPos.Column
	}
	if a.PatternID != b.PatternID {
		return a.PatternID < b.PatternID
	}
	return a.Span.End < b.Span.End
}

// SortDiagnostics sorts ds in place using Less.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool { return Less(ds[i], ds[j]) })
}

// MaxSeverity returns the highest severity in ds and false when ds is empty.
func MaxSeverity(ds []Diagnostic) (Severity, bool) {
	if len(ds) == 0 {
		return SevInfo, false
	}
	top := SevInfo
	for _, d := range ds {
		if d.Severity > top {
			top = d.Severity
		}
	}
	return top, true
}
