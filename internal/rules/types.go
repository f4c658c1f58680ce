package rules

import (
	"sort"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/scope"
)

// Matcher is the capability every pattern provides: given a node and its
// resolved scope context, report zero or more match sites. Matchers are pure
// and must not retain ctx.
type Matcher interface {
	Match(ctx *Context, n ir.NodeID) []Site
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(ctx *Context, n ir.NodeID) []Site

func (f MatcherFunc) Match(ctx *Context, n ir.NodeID) []Site { return f(ctx, n) }

// Site is one match. Args fill the {placeholders} of the descriptor's
// message and fix templates; Fix overrides the rendered fix when set.
type Site struct {
	Span ir.Span
	Args map[string]string
	Fix  string
}

// Descriptor is an immutable catalog entry.
type Descriptor struct {
	ID       string
	Summary  string
	Severity ir.Severity
	// Message and Fix are templates with {name} placeholders.
	Message string
	Fix     string
	Kinds   ir.KindSet
	Matcher Matcher
	// Source is "builtin" or the rule pack path that defined the entry.
	Source string
}

// Render fills a template with site arguments. Unknown placeholders are
// left as written.
func Render(tmpl string, args map[string]string) string {
	if len(args) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", args[k])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Context is what a matcher sees for one source unit.
type Context struct {
	Tree *scope.AnnotatedTree
}

func NewContext(at *scope.AnnotatedTree) *Context { return &Context{Tree: at} }

// Nodes returns the structural tree.
func (c *Context) Nodes() *ir.Tree { return c.Tree.Unit.Tree }

// Text returns the source text of a node.
func (c *Context) Text(id ir.NodeID) string { return c.Tree.Unit.NodeText(id) }

// Span returns the span of a node.
func (c *Context) Span(id ir.NodeID) ir.Span {
	if n := c.Nodes().Node(id); n != nil {
		return n.Span
	}
	return ir.Span{}
}

// DedupSites drops sites with a span already reported, keeping the first.
func DedupSites(sites []Site) []Site {
	if len(sites) < 2 {
		return sites
	}
	seen := make(map[[2]uint32]struct{}, len(sites))
	out := sites[:0:0]
	for _, s := range sites {
		key := [2]uint32{s.Span.Start, s.Span.End}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
