package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewithboateng/pylift/internal/engine"
	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/reporting"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/storage"
)

// Store is the minimal contract the API needs.
type Store interface {
	ListRuns(limit, offset int) ([]storage.RunRow, error)
	LoadRun(id string) (ir.Run, error)
	LatestRunID() (string, error)
	ListDiagnostics(runID, minSeverity, patternID string) ([]ir.Diagnostic, error)
	CountByPattern(runID string) ([]storage.PatternCount, error)

	ListWaivers(activeOnly bool) ([]storage.Waiver, error)
	CreateWaiver(patternID, pathGlob, messageSub, reason, createdBy string, expires time.Time) (int64, error)
	RevokeWaiver(id int64) error
}

// UserStore is the auth/audit contract the API uses.
type UserStore interface {
	GetUserByUsername(string) (storage.User, string, error)
	CreateSession(int64, string, time.Time) error
	GetSession(string) (storage.User, error)
	DeleteSession(string) error
	PurgeSessions(now time.Time) (int64, error)
	LogAudit(username, action, resource string, meta map[string]any) error
	ListAudit(limit int, actionPrefix string) ([]storage.AuditEntry, error)
}

type Server struct {
	DB        Store
	UserStore UserStore
	// Engine analyzes snippets posted to /api/v1/analyze.
	Engine *engine.Engine
	// Registry lists the catalog; defaults to rules.Builtin().
	Registry        *rules.Registry
	Logger          *slog.Logger
	AllowedOrigins  []string
	SessionDuration time.Duration
	MaxSourceBytes  int64
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	withCORS := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if origin := s.pickCORSOrigin(r); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS, POST")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			h(w, r)
		}
	}

	// Health + metrics
	mux.HandleFunc("GET /api/v1/health", withCORS(s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())

	// Auth
	mux.HandleFunc("POST /api/v1/auth/login", withCORS(s.handleLogin))
	mux.HandleFunc("POST /api/v1/auth/logout", withCORS(withAuth(s, s.handleLogout, "auth:logout")))
	mux.HandleFunc("GET /api/v1/me", withCORS(withAuth(s, s.handleMe, "me")))

	// Analysis
	mux.HandleFunc("POST /api/v1/analyze", withCORS(s.handleAnalyze))

	// Runs
	mux.HandleFunc("GET /api/v1/runs", withCORS(s.handleListRuns))
	mux.HandleFunc("GET /api/v1/runs/latest", withCORS(s.handleGetLatest))
	mux.HandleFunc("GET /api/v1/runs/{id}", withCORS(s.handleGetRun))
	mux.HandleFunc("GET /api/v1/runs/{id}/diagnostics", withCORS(s.handleListDiagnostics))
	mux.HandleFunc("GET /api/v1/runs/{id}/summary", withCORS(s.handleRunSummary))

	// Pattern catalog
	mux.HandleFunc("GET /api/v1/rules", withCORS(s.handleRules))

	// Waivers
	mux.HandleFunc("GET /api/v1/waivers", withCORS(withAuth(s, s.handleListWaivers, "waivers:list")))
	mux.HandleFunc("POST /api/v1/waivers", withCORS(withAdmin(s, s.handleCreateWaiver, "waivers:create")))
	mux.HandleFunc("POST /api/v1/waivers/{id}/revoke", withCORS(withAdmin(s, s.handleRevokeWaiver, "waivers:revoke")))

	// Audit trail
	mux.HandleFunc("GET /api/v1/audit", withCORS(withAdmin(s, s.handleListAudit, "audit:list")))

	// Fallback 404
	mux.HandleFunc("/", withCORS(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	return withRequestLog(s, mux)
}

func (s *Server) pickCORSOrigin(r *http.Request) string {
	if len(s.AllowedOrigins) == 0 {
		return ""
	}
	origin := r.Header.Get("Origin")
	for _, ao := range s.AllowedOrigins {
		if ao == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(origin, ao) {
			return origin
		}
	}
	// Not allowed: no CORS header
	return ""
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) registry() *rules.Registry {
	if s.Registry != nil {
		return s.Registry
	}
	return rules.Builtin()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := clamp(parseInt(q.Get("limit"), 20), 1, 200)
	offset := max(parseInt(q.Get("offset"), 0), 0)

	rows, err := s.DB.ListRuns(limit, offset)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": rows, "limit": limit, "offset": offset,
	})
}

// GET /api/v1/runs/latest
func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	id, err := s.DB.LatestRunID()
	if err != nil {
		s.err(w, http.StatusNotFound, "no runs")
		return
	}
	run, err := s.DB.LoadRun(id)
	if err != nil {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.DB.LoadRun(r.PathValue("id"))
	if err != nil {
		s.err(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListDiagnostics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()
	min := strings.ToLower(strings.TrimSpace(q.Get("min_severity")))
	if min == "" {
		min = "info"
	}
	if _, err := ir.ParseSeverity(min); err != nil {
		s.err(w, http.StatusBadRequest, err.Error())
		return
	}
	pattern := strings.TrimSpace(q.Get("pattern"))
	items, err := s.DB.ListDiagnostics(id, min, pattern)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": id, "min_severity": min, "items": reporting.Records(items),
	})
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	counts, err := s.DB.CountByPattern(id)
	if err != nil {
		s.err(w, http.StatusInternalServerError, "db error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "by_pattern": counts})
}

func (s *Server) err(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
