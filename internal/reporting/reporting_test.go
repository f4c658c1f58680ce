package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/rules"
)

func diag(path, id string, sev ir.Severity, line, col int, msg string) ir.Diagnostic {
	return ir.Diagnostic{
		Path:      path,
		PatternID: id,
		Severity:  sev,
		Span: ir.Span{
			StartPos: ir.Position{Line: line, Column: col},
			EndPos:   ir.Position{Line: line, Column: col + 4},
		},
		Message:      msg,
		SuggestedFix: "fix it",
	}
}

func TestWriteText(t *testing.T) {
	ds := []ir.Diagnostic{diag("a.py", "empty_catch", ir.SevWarning, 2, 5, "swallowed")}
	fails := []ir.Failure{{Path: "b.py", Kind: "parse", Message: "syntax error", Pos: ir.Position{Line: 3, Column: 1}}}
	var buf bytes.Buffer
	err := WriteText(&buf, ds, fails, TextOptions{
		NoColor:  true,
		ShowFix:  true,
		Snippets: map[string][]byte{"a.py": []byte("try:\n    pass\n")},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "a.py:2:5: warning [empty_catch] swallowed\n")
	assert.Contains(t, out, "        pass\n")
	assert.Contains(t, out, "fix: fix it")
	assert.Contains(t, out, "b.py:3:1: parse failure syntax error")
	assert.Contains(t, out, "1 diagnostics (0 error, 1 warning, 0 info), 1 failures")
}

func TestWriteJSONRecords(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []ir.Diagnostic{diag("a.py", "nullable_access", ir.SevError, 4, 9, "m")}))
	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a.py", got[0]["path"])
	assert.Equal(t, float64(4), got[0]["line"])
	assert.Equal(t, float64(9), got[0]["column"])
	assert.Equal(t, "error", got[0]["severity"])
	assert.Equal(t, "nullable_access", got[0]["pattern_id"])

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRunJSONRoundTripAndHTML(t *testing.T) {
	dir := t.TempDir()
	run := &ir.Run{
		ID:          "r1",
		Files:       []string{"a.py"},
		Diagnostics: []ir.Diagnostic{diag("a.py", "empty_catch", ir.SevWarning, 2, 5, "<swallowed>")},
		Failures:    []ir.Failure{{Path: "b.py", Kind: "read", Message: "denied"}},
	}
	p, err := WriteRunJSON("r1", dir, run)
	require.NoError(t, err)
	back, err := ReadRunJSON(p)
	require.NoError(t, err)
	assert.Equal(t, run.Diagnostics, back.Diagnostics)

	hp, err := WriteHTML("r1", dir, run)
	require.NoError(t, err)
	b, err := os.ReadFile(hp)
	require.NoError(t, err)
	assert.Contains(t, string(b), "&lt;swallowed&gt;")
	assert.Contains(t, string(b), "<h2>Failures</h2>")
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	descs := rules.Builtin().List()
	ds := []ir.Diagnostic{diag("a.py", "off_by_one_loop", ir.SevError, 6, 14, "m"), diag("a.py", "empty_catch", ir.SevInfo, 9, 1, "n")}
	require.NoError(t, WriteSARIF(&buf, "1.0.0", descs, ds))
	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	require.Len(t, log.Runs, 1)
	assert.Len(t, log.Runs[0].Tool.Driver.Rules, len(descs))
	require.Len(t, log.Runs[0].Results, 2)
	assert.Equal(t, "error", log.Runs[0].Results[0].Level)
	assert.Equal(t, "note", log.Runs[0].Results[1].Level)
	assert.Equal(t, 14, log.Runs[0].Results[0].Locations[0].Physical.Region.StartColumn)
}

func TestDiff(t *testing.T) {
	base := &ir.Run{Diagnostics: []ir.Diagnostic{
		diag("a.py", "empty_catch", ir.SevWarning, 2, 5, "swallowed"),
		diag("a.py", "nullable_access", ir.SevError, 8, 1, "x is None"),
	}}
	head := &ir.Run{Diagnostics: []ir.Diagnostic{
		diag("a.py", "empty_catch", ir.SevError, 4, 5, "swallowed"),
		diag("b.py", "off_by_one_loop", ir.SevError, 1, 1, "bound"),
	}}
	p := Diff("b", "h", base, head)
	assert.Equal(t, DiffSummary{NewCount: 1, RemovedCount: 1, ChangedCount: 1}, p.Summary)
	assert.Equal(t, "off_by_one_loop", p.New[0].PatternID)
	assert.Equal(t, "nullable_access", p.Removed[0].PatternID)
	assert.Equal(t, []string{"severity", "position"}, p.Changed[0].Changed)

	path, _, err := WriteDiffJSON("b", "h", t.TempDir(), base, head)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "diff_b__h.json"))
}

func TestExitCode(t *testing.T) {
	warn := diag("a.py", "empty_catch", ir.SevWarning, 1, 1, "m")
	errd := diag("a.py", "nullable_access", ir.SevError, 1, 1, "m")
	fail := []ir.Failure{{Path: "x.py", Kind: "parse"}}

	assert.Equal(t, ExitClean, ExitCode(nil, nil))
	assert.Equal(t, ExitClean, ExitCode([]ir.Diagnostic{warn}, nil))
	assert.Equal(t, ExitFindings, ExitCode([]ir.Diagnostic{warn, errd}, fail))
	assert.Equal(t, ExitFailures, ExitCode([]ir.Diagnostic{warn}, fail))
}
