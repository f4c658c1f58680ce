// Package engine runs the pattern catalog over resolved source units.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/parser"
	"github.com/codewithboateng/pylift/internal/rules"
	"github.com/codewithboateng/pylift/internal/scope"
)

// ErrCanceled is wrapped by every error caused by context cancellation.
var ErrCanceled = errors.New("analysis canceled")

type Options struct {
	// Registry defaults to rules.Builtin().
	Registry *rules.Registry
	Settings rules.Settings
	// Logger defaults to slog.Default().
	Logger      *slog.Logger
	MaxFileSize int64
	// Jobs bounds AnalyzeFiles parallelism; <= 0 means GOMAXPROCS.
	Jobs int
}

// MatcherFault is an internal failure of one matcher on one unit. The
// pattern reports nothing for that unit; other patterns are unaffected.
type MatcherFault struct {
	PatternID string
	Path      string
	Span      ir.Span
	Value     any
	Stack     string
}

func (f *MatcherFault) Error() string {
	return fmt.Sprintf("%s:%d:%d: matcher %s panicked: %v",
		f.Path, f.Span.StartPos.Line, f.Span.StartPos.Column, f.PatternID, f.Value)
}

// Record converts the fault to its run record.
func (f *MatcherFault) Record() ir.Fault {
	return ir.Fault{PatternID: f.PatternID, Path: f.Path, Pos: f.Span.StartPos, Message: fmt.Sprint(f.Value)}
}

// Result is the outcome for one unit.
type Result struct {
	Diagnostics []ir.Diagnostic
	Faults      []MatcherFault
}

// Engine holds a validated pattern selection. It is immutable and safe for
// concurrent use.
type Engine struct {
	reg       *rules.Registry
	descs     []rules.Descriptor
	threshold ir.Severity
	settings  rules.Settings
	logger    *slog.Logger
	opts      Options
}

// New validates opts.Settings against the registry. Unknown pattern ids or
// severities yield a *rules.ConfigurationError.
func New(opts Options) (*Engine, error) {
	reg := opts.Registry
	if reg == nil {
		reg = rules.Builtin()
	}
	descs, err := opts.Settings.Select(reg)
	if err != nil {
		return nil, err
	}
	threshold, err := opts.Settings.Threshold()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		reg:       reg,
		descs:     descs,
		threshold: threshold,
		settings:  opts.Settings,
		logger:    logger,
		opts:      opts,
	}, nil
}

// Selected returns the enabled descriptors after severity overrides.
func (e *Engine) Selected() []rules.Descriptor { return e.descs }

// Context records the configuration for a run.
func (e *Engine) Context() ir.Context { return e.settings.Context(e.descs) }

// Prepare parses and resolves one source text.
func (e *Engine) Prepare(ctx context.Context, path string, src []byte) (*scope.AnnotatedTree, error) {
	unit, err := parser.ParseWith(ctx, path, src, parser.Options{MaxFileSize: e.opts.MaxFileSize})
	if err != nil {
		return nil, err
	}
	return scope.ResolveWith(unit, scope.Options{NullableCalls: e.settings.NullableCalls})
}

// Analyze runs every selected pattern over at in one pre-order traversal.
// Cancellation is checked between top-level statements; a canceled run
// returns no diagnostics.
func (e *Engine) Analyze(ctx context.Context, at *scope.AnnotatedTree) (Result, error) {
	if at == nil || at.Unit == nil {
		return Result{}, errors.New("analyze: nil tree")
	}
	t := at.Unit.Tree
	mctx := rules.NewContext(at)
	sites := make([][]rules.Site, len(e.descs))
	faulted := make([]bool, len(e.descs))
	var faults []MatcherFault

	visit := func(id ir.NodeID) bool {
		kind := t.Kind(id)
		for i := range e.descs {
			if faulted[i] || !e.descs[i].Kinds.Has(kind) {
				continue
			}
			got, fault := e.invoke(mctx, i, id)
			if fault != nil {
				faulted[i] = true
				sites[i] = nil
				faults = append(faults, *fault)
				continue
			}
			sites[i] = append(sites[i], got...)
		}
		return true
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrCanceled, at.Unit.Path, err)
	}
	visit(t.Root)
	for _, stmt := range t.Children(t.Root) {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %s: %w", ErrCanceled, at.Unit.Path, err)
		}
		t.Walk(stmt, visit)
	}
	return Result{Diagnostics: e.assemble(at.Unit, sites, faulted), Faults: faults}, nil
}

// invoke runs one matcher under recover.
func (e *Engine) invoke(mctx *rules.Context, i int, id ir.NodeID) (sites []rules.Site, fault *MatcherFault) {
	d := &e.descs[i]
	defer func() {
		if r := recover(); r != nil {
			fault = &MatcherFault{
				PatternID: d.ID,
				Path:      mctx.Tree.Unit.Path,
				Span:      mctx.Span(id),
				Value:     r,
				Stack:     string(debug.Stack()),
			}
			e.logger.Warn("matcher fault",
				slog.String("pattern", d.ID),
				slog.String("file", fault.Path),
				slog.Int("line", fault.Span.StartPos.Line),
				slog.Any("panic", r),
			)
			sites = nil
		}
	}()
	return d.Matcher.Match(mctx, id), nil
}

func (e *Engine) assemble(unit *ir.SourceUnit, sites [][]rules.Site, faulted []bool) []ir.Diagnostic {
	var out []ir.Diagnostic
	for i, d := range e.descs {
		if faulted[i] || d.Severity < e.threshold {
			continue
		}
		for _, s := range rules.DedupSites(sites[i]) {
			fix := s.Fix
			if fix == "" {
				fix = rules.Render(d.Fix, s.Args)
			}
			out = append(out, ir.Diagnostic{
				Path:         unit.Path,
				PatternID:    d.ID,
				Severity:     d.Severity,
				Span:         s.Span,
				Message:      rules.Render(d.Message, s.Args),
				SuggestedFix: fix,
			})
		}
	}
	ir.SortDiagnostics(out)
	return out
}

// AnalyzeSource parses, resolves and analyzes one source text.
func (e *Engine) AnalyzeSource(ctx context.Context, path string, src []byte) (Result, error) {
	at, err := e.Prepare(ctx, path, src)
	if err != nil {
		return Result{}, err
	}
	return e.Analyze(ctx, at)
}

// Analyze is the one-shot form of Engine.Analyze.
func Analyze(ctx context.Context, at *scope.AnnotatedTree, opts Options) ([]ir.Diagnostic, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	res, err := e.Analyze(ctx, at)
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}

// Prepare is the one-shot parse+resolve entry point.
func Prepare(ctx context.Context, path string, src []byte, opts Options) (*scope.AnnotatedTree, error) {
	e, err := New(opts)
	if err != nil {
		return nil, err
	}
	return e.Prepare(ctx, path, src)
}

// AnalyzeSource is the one-shot form of Engine.AnalyzeSource.
func AnalyzeSource(ctx context.Context, path string, src []byte, opts Options) (Result, error) {
	e, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return e.AnalyzeSource(ctx, path, src)
}
