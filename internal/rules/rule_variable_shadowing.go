package rules

import (
	"strconv"
	"strings"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/scope"
)

func init() {
	register(Descriptor{
		ID:       "variable_shadowing",
		Summary:  "Local binding hides an outer variable and its value escapes.",
		Severity: ir.SevWarning,
		Message:  "{name} shadows the {outer} {name} bound at line {line}; the local value escapes while the outer one is left unchanged",
		Fix:      "{decl} {name}",
		Kinds:    ir.Kinds(ir.KindAssign),
		Matcher:  MatcherFunc(matchVariableShadowing),
	})
}

func matchVariableShadowing(ctx *Context, n ir.NodeID) []Site {
	t := ctx.Nodes()
	if t.Node(n).Text != "=" {
		return nil
	}
	var out []Site
	for _, target := range t.ChildrenOf(n, ir.FieldTarget) {
		if t.Kind(target) != ir.KindName {
			continue
		}
		if site, ok := shadowSite(ctx, n, target); ok {
			out = append(out, site)
		}
	}
	return out
}

func shadowSite(ctx *Context, stmt, target ir.NodeID) (Site, bool) {
	at := ctx.Tree
	bid := at.BindingAt(target)
	b := at.Binding(bid)
	if b == nil || !b.Shadows.Valid() || b.Kind != scope.BindLocal || strings.HasPrefix(b.Name, "_") {
		return Site{}, false
	}
	inner := at.Scope(b.Scope)
	if inner.Kind != scope.KindFunction && inner.Kind != scope.KindLambda {
		return Site{}, false
	}

	// Report once per name and scope, on the first plain assignment.
	var escapes scope.Escape
	first := scope.NoBinding
	for _, other := range at.Bindings(b.Scope, b.Name) {
		ob := at.Binding(other)
		if ob.Kind != scope.BindLocal && ob.Kind != scope.BindLoop && ob.Kind != scope.BindHandler {
			return Site{}, false
		}
		if ob.Kind == scope.BindLocal && !first.Valid() {
			first = other
		}
		escapes |= at.Escapes(other)
	}
	if first != bid || escapes&(scope.EscapeReturn|scope.EscapeYield) == 0 {
		return Site{}, false
	}

	outer := at.Binding(b.Shadows)
	outerScope := at.Scope(outer.Scope)
	if outerScope.Kind != scope.KindModule && !readOutside(ctx, b.Shadows, inner.Owner) {
		return Site{}, false
	}

	where, decl := "module-level", "global"
	if outerScope.Kind == scope.KindFunction {
		where, decl = "enclosing function's", "nonlocal"
	}
	return Site{
		Span: ctx.Span(stmt),
		Args: map[string]string{
			"name":  b.Name,
			"outer": where,
			"line":  strconv.Itoa(ctx.Span(outer.Node).StartPos.Line),
			"decl":  decl,
		},
	}, true
}

// readOutside reports whether the outer binding is read anywhere outside
// the nested scope owner.
func readOutside(ctx *Context, outer scope.BindingID, owner ir.NodeID) bool {
	t := ctx.Nodes()
	for _, r := range ctx.Tree.Reads(outer) {
		if !t.IsAncestor(owner, r) {
			return true
		}
	}
	return false
}
