package reporting

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/codewithboateng/pylift/internal/ir"
)

// Record is the flat JSON shape of one diagnostic.
type Record struct {
	Path         string `json:"path"`
	Line         int    `json:"line"`
	Column       int    `json:"column"`
	EndLine      int    `json:"end_line"`
	EndColumn    int    `json:"end_column"`
	PatternID    string `json:"pattern_id"`
	Severity     string `json:"severity"`
	Message      string `json:"message"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

func RecordOf(d ir.Diagnostic) Record {
	return Record{
		Path:         d.Path,
		Line:         d.Span.StartPos.Line,
		Column:       d.Span.StartPos.Column,
		EndLine:      d.Span.EndPos.Line,
		EndColumn:    d.Span.EndPos.Column,
		PatternID:    d.PatternID,
		Severity:     d.Severity.String(),
		Message:      d.Message,
		SuggestedFix: d.SuggestedFix,
	}
}

func Records(ds []ir.Diagnostic) []Record {
	out := make([]Record, 0, len(ds))
	for _, d := range ds {
		out = append(out, RecordOf(d))
	}
	return out
}

// WriteJSON writes diagnostics as an indented JSON array of records.
func WriteJSON(w io.Writer, ds []ir.Diagnostic) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Records(ds))
}

// WriteRunJSON stores the full run record as <outDir>/<runID>.json.
func WriteRunJSON(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".json")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return "", err
	}
	return path, nil
}

// ReadRunJSON loads a run written by WriteRunJSON.
func ReadRunJSON(path string) (*ir.Run, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run ir.Run
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
