package rules

import "github.com/codewithboateng/pylift/internal/ir"

func init() {
	register(Descriptor{
		ID:       "empty_catch",
		Summary:  "Exception handler silently discards the error.",
		Severity: ir.SevWarning,
		Message:  "handler for {exception} swallows the error without logging or re-raising",
		Fix:      "logging.exception(\"...\")\nraise",
		Kinds:    ir.Kinds(ir.KindHandler),
		Matcher:  MatcherFunc(matchEmptyCatch),
	})
}

func matchEmptyCatch(ctx *Context, n ir.NodeID) []Site {
	t := ctx.Nodes()
	exc := "all exceptions"
	if typ := t.Child(n, ir.FieldValue); typ.Valid() {
		exc = ctx.Text(typ)
	}
	args := map[string]string{"exception": exc}

	stmts := t.Children(t.Child(n, ir.FieldBody))
	if len(stmts) == 0 {
		return []Site{{Span: ctx.Span(n), Args: args}}
	}
	for _, s := range stmts {
		if !isNoOp(t, s) {
			return nil
		}
	}
	return []Site{{Span: ctx.Span(stmts[0]), Args: args}}
}

// isNoOp matches pass, a bare ellipsis and a bare string without
// interpolations.
func isNoOp(t *ir.Tree, id ir.NodeID) bool {
	switch t.Kind(id) {
	case ir.KindPass:
		return true
	case ir.KindExprStmt:
		vals := t.Children(id)
		if len(vals) != 1 {
			return false
		}
		switch t.Kind(vals[0]) {
		case ir.KindEllipsis:
			return true
		case ir.KindStringLit:
			return len(t.Children(vals[0])) == 0
		}
	}
	return false
}
