package rules

import (
	"path"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/storage"
)

// ApplyWaivers filters out diagnostics that match any active waiver.
// Returns (kept, waivedCount)
func ApplyWaivers(in []ir.Diagnostic, waivers []storage.Waiver) ([]ir.Diagnostic, int) {
	if len(waivers) == 0 || len(in) == 0 {
		return in, 0
	}
	var out []ir.Diagnostic
	waived := 0
nextDiag:
	for _, d := range in {
		for _, w := range waivers {
			if !eqCI(d.PatternID, w.PatternID) {
				continue
			}
			if w.PathGlob != "" && !pathMatch(w.PathGlob, d.Path) {
				continue
			}
			if w.MessageSub != "" &&
				!strings.Contains(strings.ToUpper(d.Message), strings.ToUpper(w.MessageSub)) {
				continue
			}
			// matched → waive it
			waived++
			continue nextDiag
		}
		out = append(out, d)
	}
	return out, waived
}

// pathMatch matches a slash-separated glob against the whole path or its
// base name, so "tests/*.py" and "*_test.py" both work.
func pathMatch(glob, p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	if ok, _ := path.Match(glob, p); ok {
		return true
	}
	if ok, _ := path.Match(glob, path.Base(p)); ok {
		return true
	}
	return strings.HasSuffix(p, "/"+glob)
}

func eqCI(a, b string) bool { return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) }
