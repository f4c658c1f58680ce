package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
)

type DiffPayload struct {
	BaseID  string        `json:"base_id"`
	HeadID  string        `json:"head_id"`
	Summary DiffSummary   `json:"summary"`
	New     []Record      `json:"new"`
	Removed []Record      `json:"removed"`
	Changed []DiffChanged `json:"changed"`
}

type DiffSummary struct {
	NewCount     int `json:"new"`
	RemovedCount int `json:"removed"`
	ChangedCount int `json:"changed"`
}

type DiffChanged struct {
	Key     string   `json:"key"`
	Base    Record   `json:"base"`
	Head    Record   `json:"head"`
	Changed []string `json:"fields_changed"`
}

// Diff compares two runs. Diagnostics are matched by pattern, path and
// message so that findings which only moved lines count as changed, not
// as new.
func Diff(baseID, headID string, base, head *ir.Run) DiffPayload {
	bm := index(base.Diagnostics)
	hm := index(head.Diagnostics)

	added := []Record{}
	removed := []Record{}
	changed := []DiffChanged{}

	for k, hs := range hm {
		bs := bm[k]
		n := min(len(bs), len(hs))
		for i := 0; i < n; i++ {
			b, h := RecordOf(bs[i]), RecordOf(hs[i])
			var fields []string
			if b.Severity != h.Severity {
				fields = append(fields, "severity")
			}
			if b.Line != h.Line || b.Column != h.Column {
				fields = append(fields, "position")
			}
			if strings.TrimSpace(b.SuggestedFix) != strings.TrimSpace(h.SuggestedFix) {
				fields = append(fields, "suggested_fix")
			}
			if len(fields) > 0 {
				changed = append(changed, DiffChanged{Key: k, Base: b, Head: h, Changed: fields})
			}
		}
		for _, d := range hs[n:] {
			added = append(added, RecordOf(d))
		}
	}
	for k, bs := range bm {
		n := min(len(bs), len(hm[k]))
		for _, d := range bs[n:] {
			removed = append(removed, RecordOf(d))
		}
	}

	sortRecords(added)
	sortRecords(removed)
	sort.Slice(changed, func(i, j int) bool {
		if changed[i].Key != changed[j].Key {
			return changed[i].Key < changed[j].Key
		}
		return changed[i].Head.Line < changed[j].Head.Line
	})

	return DiffPayload{
		BaseID: baseID, HeadID: headID,
		Summary: DiffSummary{
			NewCount:     len(added),
			RemovedCount: len(removed),
			ChangedCount: len(changed),
		},
		New:     added,
		Removed: removed,
		Changed: changed,
	}
}

// WriteDiffJSON stores Diff as <outDir>/diff_<base>__<head>.json.
func WriteDiffJSON(baseID, headID, outDir string, base, head *ir.Run) (string, DiffPayload, error) {
	payload := Diff(baseID, headID, base, head)
	path := filepath.Join(outDir, "diff_"+baseID+"__"+headID+".json")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", payload, err
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", payload, err
	}
	return path, payload, os.WriteFile(path, b, 0o644)
}

// index groups diagnostics by identity, each group in source order.
func index(ds []ir.Diagnostic) map[string][]ir.Diagnostic {
	m := map[string][]ir.Diagnostic{}
	for _, d := range ds {
		k := keyOf(d)
		m[k] = append(m[k], d)
	}
	for _, g := range m {
		ir.SortDiagnostics(g)
	}
	return m
}

func keyOf(d ir.Diagnostic) string {
	sb := strings.Builder{}
	sb.WriteString(d.PatternID)
	sb.WriteByte('|')
	sb.WriteString(filepath.ToSlash(d.Path))
	sb.WriteByte('|')
	sb.WriteString(strings.TrimSpace(d.Message))
	return sb.String()
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.PatternID < b.PatternID
	})
}
