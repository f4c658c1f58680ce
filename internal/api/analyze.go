package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codewithboateng/pylift/internal/engine"
	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/reporting"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/storage"
)

type analyzeReq struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type analyzeResp struct {
	Path        string             `json:"path"`
	Diagnostics []reporting.Record `json:"diagnostics"`
	Waived      int                `json:"waived"`
	Faults      []ir.Fault         `json:"faults,omitempty"`
}

// POST /api/v1/analyze analyzes one posted source text; nothing is stored.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { analyzeDuration.Observe(time.Since(start).Seconds()) }()

	if s.Engine == nil {
		analyzeRequests.WithLabelValues("error").Inc()
		s.err(w, http.StatusServiceUnavailable, "analysis disabled")
		return
	}
	limit := s.MaxSourceBytes
	if limit <= 0 {
		limit = parser.DefaultMaxFileSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+4096)
	var in analyzeReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		analyzeRequests.WithLabelValues("bad_request").Inc()
		s.err(w, http.StatusBadRequest, "invalid json")
		return
	}
	path := strings.TrimSpace(in.Path)
	if path == "" {
		path = "snippet.py"
	}

	res, err := s.Engine.AnalyzeSource(r.Context(), path, []byte(in.Source))
	if err != nil {
		var pe *parser.ParseError
		switch {
		case errors.As(err, &pe):
			analyzeRequests.WithLabelValues("parse_error").Inc()
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": pe.Msg, "path": path, "line": pe.Span.StartPos.Line, "column": pe.Span.StartPos.Column,
			})
		case errors.Is(err, parser.ErrFileTooLarge), errors.Is(err, parser.ErrInvalidContent):
			analyzeRequests.WithLabelValues("bad_request").Inc()
			s.err(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, engine.ErrCanceled):
			analyzeRequests.WithLabelValues("canceled").Inc()
			s.err(w, http.StatusServiceUnavailable, "canceled")
		default:
			analyzeRequests.WithLabelValues("error").Inc()
			s.logger().Error("analyze failed", slog.String("path", path), slog.Any("err", err))
			s.err(w, http.StatusInternalServerError, "analysis error")
		}
		return
	}

	diags := res.Diagnostics
	waived := 0
	if s.DB != nil {
		var ws []storage.Waiver
		if ws, err = s.DB.ListWaivers(true); err == nil {
			diags, waived = rules.ApplyWaivers(diags, ws)
		} else {
			s.logger().Warn("list waivers", slog.Any("err", err))
		}
	}

	out := analyzeResp{Path: path, Diagnostics: reporting.Records(diags), Waived: waived}
	for i := range res.Faults {
		matcherFaults.WithLabelValues(res.Faults[i].PatternID).Inc()
		out.Faults = append(out.Faults, res.Faults[i].Record())
	}
	for _, d := range diags {
		diagnosticsReported.WithLabelValues(d.PatternID).Inc()
	}
	analyzeRequests.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, out)
}
