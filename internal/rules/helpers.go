package rules

import (
	"strconv"

	"github.com/codewithboateng/pylift/internal/ir"
	"github.com/codewithboateng/pylift/internal/scope"
)

// sameVar reports whether two Name nodes denote the same variable: same text
// and same resolved binding (both unresolved counts as same).
func (c *Context) sameVar(a, b ir.NodeID) bool {
	t := c.Nodes()
	na, nb := t.Node(a), t.Node(b)
	if na == nil || nb == nil || na.Kind != ir.KindName || nb.Kind != ir.KindName || na.Text != nb.Text {
		return false
	}
	ra, rb := c.resolved(a), c.resolved(b)
	return ra == rb
}

// resolved maps a Name to its binding whether it is a load or a target.
func (c *Context) resolved(id ir.NodeID) scope.BindingID {
	if b := c.Tree.BindingAt(id); b.Valid() {
		return b
	}
	return c.Tree.ResolveRef(id)
}

// sameName reports whether a Name node has text name and lives in scope s.
func (c *Context) sameName(id ir.NodeID, name string, s scope.ScopeID) bool {
	n := c.Nodes().Node(id)
	return n != nil && n.Kind == ir.KindName && n.Text == name && c.Tree.ScopeOf(id) == s
}

func intLit(t *ir.Tree, id ir.NodeID) (int64, bool) {
	n := t.Node(id)
	if n == nil {
		return 0, false
	}
	switch n.Kind {
	case ir.KindIntLit:
		v, err := strconv.ParseInt(n.Text, 0, 64)
		return v, err == nil
	case ir.KindUnaryOp:
		v, ok := intLit(t, t.Child(id, ir.FieldValue))
		if !ok {
			return 0, false
		}
		switch n.Text {
		case "-":
			return -v, true
		case "+":
			return v, true
		}
	}
	return 0, false
}

// builtinCall reports whether id calls the unshadowed builtin name.
func (c *Context) builtinCall(id ir.NodeID, name string) bool {
	t := c.Nodes()
	if t.Kind(id) != ir.KindCall {
		return false
	}
	fn := t.Child(id, ir.FieldFunc)
	n := t.Node(fn)
	return n != nil && n.Kind == ir.KindName && n.Text == name && !c.Tree.ResolveRef(fn).Valid()
}

// positionalArgs returns call arguments that are not keyword or splat.
func positionalArgs(t *ir.Tree, call ir.NodeID) []ir.NodeID {
	var out []ir.NodeID
	for _, a := range t.ChildrenOf(call, ir.FieldArg) {
		if k := t.Kind(a); k == ir.KindKeywordArg || k == ir.KindOther {
			return nil
		}
		out = append(out, a)
	}
	return out
}

func isTerminator(k ir.Kind) bool {
	switch k {
	case ir.KindReturn, ir.KindRaise, ir.KindContinue, ir.KindBreak:
		return true
	}
	return false
}

func isNoneLit(t *ir.Tree, id ir.NodeID) bool { return t.Kind(id) == ir.KindNoneLit }
