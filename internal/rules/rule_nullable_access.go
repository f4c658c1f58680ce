package rules

import (
	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/scope"
)

func init() {
	register(Descriptor{
		ID:       "nullable_access",
		Summary:  "Attribute access on a value that may be None.",
		Severity: ir.SevError,
		Message:  "{name} is {state} here; accessing .{attr} raises AttributeError",
		Fix:      "if {name} is not None:",
		Kinds:    ir.Kinds(ir.KindAttribute),
		Matcher:  MatcherFunc(matchNullableAccess),
	})
}

func matchNullableAccess(ctx *Context, n ir.NodeID) []Site {
	t := ctx.Nodes()
	recv := t.Child(n, ir.FieldReceiver)
	var b *scope.Binding
	switch rn := t.Node(recv); {
	case rn == nil:
		return nil
	case rn.Kind == ir.KindAssign && rn.Text == ":=":
		// (x := value).attr reads the value just bound; no guard can intervene.
		b = ctx.Tree.Binding(ctx.Tree.BindingAt(t.Child(recv, ir.FieldTarget)))
		if b == nil || !b.Nullability.Nullable() {
			return nil
		}
	case rn.Kind == ir.KindName:
		b = ctx.Tree.Binding(ctx.Tree.ResolveRef(recv))
		if b == nil || !b.Nullability.Nullable() || b.Kind != scope.BindLocal {
			return nil
		}
		s := ctx.Tree.ScopeOf(recv)
		// global/nonlocal rebinds land in an outer scope but were written here.
		if b.Scope != s && ctx.Tree.ScopeOf(b.Node) != s {
			return nil
		}
		if guarded(ctx, n, b, s) {
			return nil
		}
	default:
		return nil
	}

	state := "None"
	if b.Nullability == scope.MaybeNull {
		state = "possibly None"
	}
	anchor := n
	if p := t.Parent(n); t.Kind(p) == ir.KindCall && t.Node(n).Field == ir.FieldFunc {
		anchor = p
	}
	return []Site{{
		Span: ctx.Span(anchor),
		Args: map[string]string{"name": b.Name, "attr": t.Node(n).Text, "state": state},
	}}
}

// guarded reports whether a non-None check for the binding's name dominates
// the access at id.
func guarded(ctx *Context, id ir.NodeID, b *scope.Binding, s scope.ScopeID) bool {
	t := ctx.Nodes()
	owner := ctx.Tree.Scope(s).Owner
	decl := ctx.Span(b.Node)

	child := id
	for p := t.Parent(id); p.Valid(); child, p = p, t.Parent(p) {
		pn := t.Node(p)
		// A guard only counts when the binding happened before the branch.
		if !ctx.Span(child).Contains(decl) && narrowedBy(ctx, p, child, b.Name, s) {
			return true
		}
		if pn.Kind == ir.KindBlock && earlyExit(ctx, p, child, b.Name, s, decl.Start) {
			return true
		}
		if p == owner {
			break
		}
	}
	return false
}

// narrowedBy handles guards whose branch contains the access.
func narrowedBy(ctx *Context, p, child ir.NodeID, name string, s scope.ScopeID) bool {
	t := ctx.Nodes()
	pn := t.Node(p)
	field := t.Node(child).Field
	switch pn.Kind {
	case ir.KindIf, ir.KindWhile, ir.KindIfExp:
		cond := t.Child(p, ir.FieldCond)
		switch field {
		case ir.FieldBody:
			return ctx.narrows(cond, name, s, true)
		case ir.FieldElse:
			return ctx.narrows(cond, name, s, false)
		}
	case ir.KindBoolOp:
		if field != ir.FieldRight {
			return false
		}
		left := t.Child(p, ir.FieldLeft)
		switch pn.Text {
		case "and":
			return ctx.narrows(left, name, s, true)
		case "or":
			return ctx.narrows(left, name, s, false)
		}
	case ir.KindComprehension:
		for _, c := range t.ChildrenOf(p, ir.FieldNone) {
			if t.Kind(c) == ir.KindCompIf && ctx.narrows(t.Child(c, ir.FieldCond), name, s, true) {
				return true
			}
		}
	}
	return false
}

// earlyExit looks for `if x is None: return` or `assert x` between the
// binding and the statement containing the access.
func earlyExit(ctx *Context, block, child ir.NodeID, name string, s scope.ScopeID, after uint32) bool {
	t := ctx.Nodes()
	for _, stmt := range t.Children(block) {
		if stmt == child {
			return false
		}
		sn := t.Node(stmt)
		if sn.Span.Start <= after {
			continue
		}
		switch sn.Kind {
		case ir.KindAssert:
			if ctx.narrows(t.Child(stmt, ir.FieldCond), name, s, true) {
				return true
			}
		case ir.KindIf:
			if t.Child(stmt, ir.FieldElse).Valid() {
				continue
			}
			body := t.Children(t.Child(stmt, ir.FieldBody))
			if len(body) > 0 && isTerminator(t.Kind(body[len(body)-1])) &&
				ctx.narrows(t.Child(stmt, ir.FieldCond), name, s, false) {
				return true
			}
		}
	}
	return false
}

// narrows reports whether cond evaluating to want proves name is not None.
func (c *Context) narrows(cond ir.NodeID, name string, s scope.ScopeID, want bool) bool {
	t := c.Nodes()
	n := t.Node(cond)
	if n == nil {
		return false
	}
	switch n.Kind {
	case ir.KindName:
		return want && c.sameName(cond, name, s)
	case ir.KindAssign:
		return want && c.testsName(cond, name, s)
	case ir.KindNot:
		return c.narrows(t.Child(cond, ir.FieldValue), name, s, !want)
	case ir.KindBoolOp:
		left, right := t.Child(cond, ir.FieldLeft), t.Child(cond, ir.FieldRight)
		if (n.Text == "and") == want {
			return c.narrows(left, name, s, want) || c.narrows(right, name, s, want)
		}
		return c.narrows(left, name, s, want) && c.narrows(right, name, s, want)
	case ir.KindCall:
		return want && c.builtinCall(cond, "isinstance") && len(positionalArgs(t, cond)) == 2 &&
			c.sameName(positionalArgs(t, cond)[0], name, s)
	case ir.KindCompare:
		ops := t.ChildrenOf(cond, ir.FieldValue)
		if len(ops) != 2 {
			return false
		}
		var other ir.NodeID
		switch {
		case c.testsName(ops[0], name, s):
			other = ops[1]
		case c.testsName(ops[1], name, s):
			other = ops[0]
		default:
			return false
		}
		if !isNoneLit(t, other) {
			return false
		}
		switch n.Text {
		case "is not", "!=":
			return want
		case "is", "==":
			return !want
		}
	}
	return false
}

// testsName matches name itself or (name := expr), which tests the new value.
func (c *Context) testsName(id ir.NodeID, name string, s scope.ScopeID) bool {
	t := c.Nodes()
	if n := t.Node(id); n != nil && n.Kind == ir.KindAssign && n.Text == ":=" {
		return c.sameName(t.Child(id, ir.FieldTarget), name, s)
	}
	return c.sameName(id, name, s)
}
