package api

import "net/http"

// GET /api/v1/rules (no auth needed for read-only)
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	type R struct {
		ID              string   `json:"id"`
		Summary         string   `json:"summary"`
		DefaultSeverity string   `json:"default_severity"`
		Kinds           []string `json:"kinds"`
		Source          string   `json:"source"`
		Enabled         bool     `json:"enabled"`
	}
	enabled := map[string]bool{}
	if s.Engine != nil {
		for _, d := range s.Engine.Selected() {
			enabled[d.ID] = true
		}
	}
	out := []R{}
	for _, d := range s.registry().List() {
		out = append(out, R{
			ID: d.ID, Summary: d.Summary, DefaultSeverity: d.Severity.String(),
			Kinds: d.Kinds.Names(), Source: d.Source, Enabled: s.Engine == nil || enabled[d.ID],
		})
	}
	// stable order already guaranteed by Registry.List
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}
