package rules

import (
	"strconv"

	"github.com/codewithboateng/pylift/internal/ir"
)

func init() {
	register(Descriptor{
		ID:       "off_by_one_loop",
		Summary:  "Loop bound exceeds the length of the collection it indexes.",
		Severity: ir.SevError,
		Message:  "loop bound {bound} runs {over} past the end of {collection}; {collection}[{var}] raises IndexError on the last iteration",
		Fix:      "range(len({collection}))",
		Kinds:    ir.Kinds(ir.KindFor, ir.KindCompFor, ir.KindWhile),
		Matcher:  MatcherFunc(matchOffByOneLoop),
	})
}

func matchOffByOneLoop(ctx *Context, n ir.NodeID) []Site {
	t := ctx.Nodes()
	if t.Kind(n) == ir.KindWhile {
		return matchOffByOneWhile(ctx, n)
	}

	target := t.Child(n, ir.FieldTarget)
	bound := t.Child(n, ir.FieldBound)
	if t.Kind(target) != ir.KindName || !ctx.builtinCall(bound, "range") {
		return nil
	}
	args := positionalArgs(t, bound)
	var end ir.NodeID
	fix := ""
	switch len(args) {
	case 1:
		end = args[0]
	case 2, 3:
		if len(args) == 3 {
			if step, ok := intLit(t, args[2]); !ok || step != 1 {
				return nil
			}
		}
		end = args[1]
		fix = "range(" + ctx.Text(args[0]) + ", len({collection}))"
	default:
		return nil
	}
	coll, over, ok := lenPlus(ctx, end)
	if !ok || over < 1 {
		return nil
	}

	var body []ir.NodeID
	if t.Kind(n) == ir.KindCompFor {
		// Element expression and filters of the enclosing comprehension.
		for _, c := range t.Children(t.Parent(n)) {
			if c != n {
				body = append(body, c)
			}
		}
	} else {
		body = []ir.NodeID{t.Child(n, ir.FieldBody)}
	}
	if !indexesWith(ctx, body, coll, target) {
		return nil
	}
	args0 := map[string]string{
		"bound":      ctx.Text(end),
		"over":       plural(over, "element"),
		"collection": t.Node(coll).Text,
		"var":        t.Node(target).Text,
	}
	return []Site{{Span: ctx.Span(bound), Args: args0, Fix: Render(fix, args0)}}
}

// matchOffByOneWhile handles `while i <= len(c)` and `while i < len(c) + k`.
func matchOffByOneWhile(ctx *Context, n ir.NodeID) []Site {
	t := ctx.Nodes()
	cond := t.Child(n, ir.FieldCond)
	if t.Kind(cond) != ir.KindCompare {
		return nil
	}
	ops := t.ChildrenOf(cond, ir.FieldValue)
	if len(ops) != 2 || t.Kind(ops[0]) != ir.KindName {
		return nil
	}
	coll, over, ok := lenPlus(ctx, ops[1])
	if !ok {
		return nil
	}
	switch t.Node(cond).Text {
	case "<=":
		over++
	case "<":
	default:
		return nil
	}
	if over < 1 {
		return nil
	}
	if !indexesWith(ctx, []ir.NodeID{t.Child(n, ir.FieldBody)}, coll, ops[0]) {
		return nil
	}
	v := t.Node(ops[0]).Text
	args := map[string]string{
		"bound":      ctx.Text(ops[1]),
		"over":       plural(over, "element"),
		"collection": t.Node(coll).Text,
		"var":        v,
	}
	return []Site{{Span: ctx.Span(cond), Args: args, Fix: v + " < len(" + t.Node(coll).Text + ")"}}
}

// lenPlus matches len(c) + k with any nesting of integer additions and
// subtractions. It returns the Name node c and the summed k.
func lenPlus(ctx *Context, id ir.NodeID) (ir.NodeID, int64, bool) {
	t := ctx.Nodes()
	n := t.Node(id)
	if n == nil {
		return ir.NoNode, 0, false
	}
	switch n.Kind {
	case ir.KindCall:
		if !ctx.builtinCall(id, "len") {
			return ir.NoNode, 0, false
		}
		args := positionalArgs(t, id)
		if len(args) != 1 || t.Kind(args[0]) != ir.KindName {
			return ir.NoNode, 0, false
		}
		return args[0], 0, true
	case ir.KindBinaryOp:
		left, right := t.Child(id, ir.FieldLeft), t.Child(id, ir.FieldRight)
		switch n.Text {
		case "+":
			if c, k, ok := lenPlus(ctx, left); ok {
				if v, ok := intLit(t, right); ok {
					return c, k + v, true
				}
			}
			if c, k, ok := lenPlus(ctx, right); ok {
				if v, ok := intLit(t, left); ok {
					return c, k + v, true
				}
			}
		case "-":
			if c, k, ok := lenPlus(ctx, left); ok {
				if v, ok := intLit(t, right); ok {
					return c, k - v, true
				}
			}
		}
	}
	return ir.NoNode, 0, false
}

// indexesWith reports whether any root subscripts coll with the loop
// variable v.
func indexesWith(ctx *Context, roots []ir.NodeID, coll, v ir.NodeID) bool {
	t := ctx.Nodes()
	found := false
	for _, root := range roots {
		t.WalkScope(root, func(id ir.NodeID) bool {
			if found {
				return false
			}
			if t.Kind(id) != ir.KindSubscript {
				return true
			}
			recv := t.Child(id, ir.FieldReceiver)
			idx := t.ChildrenOf(id, ir.FieldIndex)
			if len(idx) == 1 && ctx.sameVar(recv, coll) && ctx.sameVar(idx[0], v) {
				found = true
				return false
			}
			return true
		})
	}
	return found
}

func plural(n int64, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.FormatInt(n, 10) + " " + word + "s"
}
