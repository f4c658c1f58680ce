package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
)

func WriteHTML(runID, outDir string, run *ir.Run) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, runID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Head + styles
	fmt.Fprintf(f, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(runID))
	fmt.Fprint(f, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace} .error{color:#b00020} .warning{color:#a86b00}</style>")
	fmt.Fprint(f, "</head><body>")

	// Title + summary
	fmt.Fprintf(f, "<h1>pylift report – <span class='mono'>%s</span></h1>", html.EscapeString(runID))
	fmt.Fprintf(f, "<p>Files: %d &nbsp; Diagnostics: %d &nbsp; Failures: %d", len(run.Files), len(run.Diagnostics), len(run.Failures))
	if run.Waived > 0 {
		fmt.Fprintf(f, " &nbsp; Waived: %d", run.Waived)
	}
	fmt.Fprint(f, "</p>")

	// Configuration banner
	threshold := run.Context.MinSeverity
	if threshold == "" {
		threshold = "info"
	}
	fmt.Fprintf(f, "<p class='dim'>Severity threshold: %s", html.EscapeString(threshold))
	if n := len(run.Context.Enabled); n > 0 {
		fmt.Fprintf(f, " &nbsp; Patterns: %s", html.EscapeString(strings.Join(run.Context.Enabled, ", ")))
	}
	fmt.Fprint(f, "</p>")

	// Per-pattern counts
	if len(run.Diagnostics) > 0 {
		counts := map[string]int{}
		for _, d := range run.Diagnostics {
			counts[d.PatternID]++
		}
		ids := make([]string, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if counts[ids[i]] == counts[ids[j]] {
				return ids[i] < ids[j]
			}
			return counts[ids[i]] > counts[ids[j]]
		})
		fmt.Fprint(f, "<h2>By Pattern</h2><table><tr><th>Pattern</th><th>Count</th></tr>")
		for _, id := range ids {
			fmt.Fprintf(f, "<tr><td class='mono'>%s</td><td>%d</td></tr>", html.EscapeString(id), counts[id])
		}
		fmt.Fprint(f, "</table>")
	}

	// All diagnostics
	if len(run.Diagnostics) > 0 {
		fmt.Fprint(f, "<h2>Diagnostics</h2><table><tr><th>Severity</th><th>Pattern</th><th>Location</th><th>Message</th><th>Suggested fix</th></tr>")
		for _, d := range run.Diagnostics {
			fmt.Fprintf(f, "<tr><td class='%s'>%s</td><td class='mono'>%s</td><td class='mono'>%s:%d:%d</td><td>%s</td><td class='mono'>%s</td></tr>",
				d.Severity, d.Severity,
				html.EscapeString(d.PatternID),
				html.EscapeString(d.Path), d.Span.StartPos.Line, d.Span.StartPos.Column,
				html.EscapeString(d.Message),
				strings.ReplaceAll(html.EscapeString(d.SuggestedFix), "\n", "<br>"),
			)
		}
		fmt.Fprint(f, "</table>")
	} else {
		fmt.Fprint(f, "<h2>Diagnostics</h2><p class='dim'>No diagnostics at or above the configured threshold.</p>")
	}

	// Failures
	if len(run.Failures) > 0 {
		fmt.Fprint(f, "<h2>Failures</h2><table><tr><th>Kind</th><th>File</th><th>Message</th></tr>")
		for _, fl := range run.Failures {
			fmt.Fprintf(f, "<tr><td>%s</td><td class='mono'>%s</td><td>%s</td></tr>",
				html.EscapeString(fl.Kind), html.EscapeString(fl.Path), html.EscapeString(fl.Message))
		}
		fmt.Fprint(f, "</table>")
	}

	fmt.Fprint(f, "</body></html>")
	return path, nil
}
