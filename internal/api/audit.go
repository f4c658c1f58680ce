package api

import "net/http"

// handleListAudit serves the audit trail, newest first. ?action= narrows it
// by prefix, e.g. "waiver:".
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 100), 1, 1000)
	items, err := s.UserStore.ListAudit(limit, q.Get("action"))
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}
