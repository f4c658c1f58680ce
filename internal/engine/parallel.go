package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/scope"
)

// Report is the merged outcome of AnalyzeFiles.
type Report struct {
	Files       []string
	Diagnostics []ir.Diagnostic
	Failures    []ir.Failure
	Faults      []MatcherFault
}

// Run packages the report as a persisted run record.
func (r *Report) Run(id, source string, started time.Time, c ir.Context) ir.Run {
	run := ir.Run{
		ID:          id,
		StartedAt:   started.UTC(),
		Source:      source,
		IRVersion:   ir.Version,
		Context:     c,
		Files:       r.Files,
		Diagnostics: r.Diagnostics,
		Failures:    r.Failures,
	}
	for i := range r.Faults {
		run.Faults = append(run.Faults, r.Faults[i].Record())
	}
	return run
}

type fileResult struct {
	diags   []ir.Diagnostic
	faults  []MatcherFault
	failure *ir.Failure
}

// AnalyzeFiles analyzes every file on a bounded worker pool. A file that
// cannot be read, parsed or resolved becomes a Failure; the rest of the
// batch is unaffected. Output is independent of scheduling.
func (e *Engine) AnalyzeFiles(ctx context.Context, files []parser.File) (*Report, error) {
	rep := &Report{Files: make([]string, 0, len(files))}
	for _, f := range files {
		rep.Files = append(rep.Files, f.Path)
	}
	if len(files) == 0 {
		return rep, nil
	}

	jobs := e.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.analyzeFile(gctx, f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	for _, r := range results {
		rep.Diagnostics = append(rep.Diagnostics, r.diags...)
		rep.Faults = append(rep.Faults, r.faults...)
		if r.failure != nil {
			rep.Failures = append(rep.Failures, *r.failure)
		}
	}
	ir.SortDiagnostics(rep.Diagnostics)
	sort.SliceStable(rep.Failures, func(i, j int) bool { return rep.Failures[i].Path < rep.Failures[j].Path })
	return rep, nil
}

func (e *Engine) analyzeFile(ctx context.Context, f parser.File) fileResult {
	if f.Err != nil {
		return fileResult{failure: &ir.Failure{Path: f.Path, Kind: "read", Message: f.Err.Error()}}
	}
	unit, err := parser.ParseWith(ctx, f.Path, f.Text, parser.Options{MaxFileSize: e.opts.MaxFileSize})
	if err != nil {
		return fileResult{failure: failureOf(f.Path, "parse", err)}
	}
	at, err := scope.ResolveWith(unit, scope.Options{NullableCalls: e.settings.NullableCalls})
	if err != nil {
		return fileResult{failure: failureOf(f.Path, "resolve", err)}
	}
	res, err := e.Analyze(ctx, at)
	if err != nil {
		return fileResult{failure: failureOf(f.Path, "analyze", err)}
	}
	if len(res.Faults) > 0 {
		e.logger.Debug("unit analyzed with faults", slog.String("file", f.Path), slog.Int("faults", len(res.Faults)))
	}
	return fileResult{diags: res.Diagnostics, faults: res.Faults}
}

func failureOf(path, stage string, err error) *ir.Failure {
	var pe *parser.ParseError
	switch {
	case errors.As(err, &pe):
		return &ir.Failure{Path: path, Kind: "parse", Message: pe.Msg, Pos: pe.Span.StartPos}
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &ir.Failure{Path: path, Kind: "canceled", Message: err.Error()}
	case stage == "analyze":
		return &ir.Failure{Path: path, Kind: "resolve", Message: err.Error()}
	default:
		return &ir.Failure{Path: path, Kind: stage, Message: err.Error()}
	}
}

// AnalyzeFiles is the one-shot form of Engine.AnalyzeFiles.
func AnalyzeFiles(ctx context.Context, files []parser.File, opts Options) (*Report, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e.AnalyzeFiles(ctx, files)
}
