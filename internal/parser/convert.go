package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codewithboateng/pylift/internal/ir"
)

// converter lowers a tree-sitter Python tree into the ir arena. Nodes are
// added in pre-order so parents always precede their children.
type converter struct {
	src  []byte
	tree *ir.Tree
}

func (c *converter) add(kind ir.Kind, f ir.Field, n *sitter.Node, parent ir.NodeID, text string) ir.NodeID {
	return c.tree.Add(kind, f, spanOf(n), parent, text)
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		ch := n.NamedChild(i)
		if ch == nil || ch.Type() == "comment" {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func firstOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, ch := range named(n) {
		if ch.Type() == typ {
			return ch
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (c *converter) each(n *sitter.Node, parent ir.NodeID, f ir.Field) {
	for _, ch := range named(n) {
		c.convert(ch, parent, f)
	}
}

func (c *converter) convert(n *sitter.Node, parent ir.NodeID, f ir.Field) ir.NodeID {
	if n == nil {
		return ir.NoNode
	}
	switch n.Type() {
	case "comment":
		return ir.NoNode

	case "module":
		id := c.add(ir.KindModule, f, n, parent, "")
		c.each(n, id, ir.FieldNone)
		return id

	case "block":
		id := c.add(ir.KindBlock, f, n, parent, "")
		c.each(n, id, ir.FieldNone)
		return id

	case "expression_statement":
		kids := named(n)
		if len(kids) == 1 {
			switch kids[0].Type() {
			case "assignment", "augmented_assignment":
				return c.convert(kids[0], parent, f)
			}
		}
		id := c.add(ir.KindExprStmt, f, n, parent, "")
		c.each(n, id, ir.FieldValue)
		return id

	case "function_definition":
		return c.function(n, parent, f, nil)

	case "class_definition":
		return c.class(n, parent, f, nil)

	case "decorated_definition":
		var decos []*sitter.Node
		for _, ch := range named(n) {
			if ch.Type() == "decorator" {
				decos = append(decos, ch)
			}
		}
		def := n.ChildByFieldName("definition")
		if def != nil {
			switch def.Type() {
			case "function_definition":
				return c.function(def, parent, f, decos)
			case "class_definition":
				return c.class(def, parent, f, decos)
			}
		}
		return c.generic(n, parent, f)

	case "for_statement":
		id := c.add(ir.KindFor, f, n, parent, "")
		c.convert(n.ChildByFieldName("left"), id, ir.FieldTarget)
		c.convert(n.ChildByFieldName("right"), id, ir.FieldBound)
		c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			c.convert(alt.ChildByFieldName("body"), id, ir.FieldElse)
		}
		return id

	case "while_statement":
		id := c.add(ir.KindWhile, f, n, parent, "")
		c.convert(n.ChildByFieldName("condition"), id, ir.FieldCond)
		c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			c.convert(alt.ChildByFieldName("body"), id, ir.FieldElse)
		}
		return id

	case "if_statement", "elif_clause":
		id := c.add(ir.KindIf, f, n, parent, "")
		c.convert(n.ChildByFieldName("condition"), id, ir.FieldCond)
		c.convert(n.ChildByFieldName("consequence"), id, ir.FieldBody)
		if n.Type() == "if_statement" {
			// elif chains nest as else-if so every If has one else branch.
			cur := id
			for _, ch := range named(n) {
				switch ch.Type() {
				case "elif_clause":
					cur = c.convert(ch, cur, ir.FieldElse)
				case "else_clause":
					c.convert(ch.ChildByFieldName("body"), cur, ir.FieldElse)
				}
			}
		}
		return id

	case "try_statement":
		id := c.add(ir.KindTry, f, n, parent, "")
		c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
		for _, ch := range named(n) {
			switch ch.Type() {
			case "except_clause", "except_group_clause":
				c.handler(ch, id)
			case "else_clause":
				c.convert(ch.ChildByFieldName("body"), id, ir.FieldElse)
			case "finally_clause":
				c.convert(firstOfType(ch, "block"), id, ir.FieldFinally)
			}
		}
		return id

	case "with_statement":
		id := c.add(ir.KindWith, f, n, parent, "")
		if clause := firstOfType(n, "with_clause"); clause != nil {
			for _, item := range named(clause) {
				if item.Type() != "with_item" {
					continue
				}
				v := item.ChildByFieldName("value")
				if v == nil {
					kids := named(item)
					if len(kids) == 0 {
						continue
					}
					v = kids[0]
				}
				if v.Type() == "as_pattern" {
					kids := named(v)
					if len(kids) > 0 {
						c.convert(kids[0], id, ir.FieldValue)
					}
					if len(kids) > 1 {
						c.asTarget(kids[len(kids)-1], id, ir.FieldTarget)
					}
					continue
				}
				c.convert(v, id, ir.FieldValue)
			}
		}
		c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
		return id

	case "assignment":
		id := c.add(ir.KindAssign, f, n, parent, "=")
		c.convert(n.ChildByFieldName("left"), id, ir.FieldTarget)
		c.convert(n.ChildByFieldName("right"), id, ir.FieldValue)
		return id

	case "augmented_assignment":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		id := c.add(ir.KindAugAssign, f, n, parent, op)
		c.convert(n.ChildByFieldName("left"), id, ir.FieldTarget)
		c.convert(n.ChildByFieldName("right"), id, ir.FieldValue)
		return id

	case "named_expression":
		id := c.add(ir.KindAssign, f, n, parent, ":=")
		c.convert(n.ChildByFieldName("name"), id, ir.FieldTarget)
		c.convert(n.ChildByFieldName("value"), id, ir.FieldValue)
		return id

	case "return_statement":
		id := c.add(ir.KindReturn, f, n, parent, "")
		c.each(n, id, ir.FieldValue)
		return id

	case "raise_statement":
		id := c.add(ir.KindRaise, f, n, parent, "")
		c.each(n, id, ir.FieldValue)
		return id

	case "assert_statement":
		id := c.add(ir.KindAssert, f, n, parent, "")
		for i, ch := range named(n) {
			field := ir.FieldValue
			if i == 0 {
				field = ir.FieldCond
			}
			c.convert(ch, id, field)
		}
		return id

	case "pass_statement":
		return c.add(ir.KindPass, f, n, parent, "")
	case "break_statement":
		return c.add(ir.KindBreak, f, n, parent, "")
	case "continue_statement":
		return c.add(ir.KindContinue, f, n, parent, "")

	case "global_statement", "nonlocal_statement":
		kind := ir.KindGlobal
		if n.Type() == "nonlocal_statement" {
			kind = ir.KindNonlocal
		}
		id := c.add(kind, f, n, parent, "")
		for _, ch := range named(n) {
			if ch.Type() == "identifier" {
				c.add(ir.KindName, ir.FieldName, ch, id, c.text(ch))
			}
		}
		return id

	case "import_statement", "import_from_statement", "future_import_statement":
		return c.imports(n, parent, f)

	case "identifier":
		return c.add(ir.KindName, f, n, parent, c.text(n))

	case "attribute":
		attr := ""
		if a := n.ChildByFieldName("attribute"); a != nil {
			attr = c.text(a)
		}
		id := c.add(ir.KindAttribute, f, n, parent, attr)
		c.convert(n.ChildByFieldName("object"), id, ir.FieldReceiver)
		return id

	case "call":
		id := c.add(ir.KindCall, f, n, parent, "")
		c.convert(n.ChildByFieldName("function"), id, ir.FieldFunc)
		if args := n.ChildByFieldName("arguments"); args != nil {
			if args.Type() == "argument_list" {
				c.each(args, id, ir.FieldArg)
			} else {
				c.convert(args, id, ir.FieldArg)
			}
		}
		return id

	case "keyword_argument":
		name := ""
		if nn := n.ChildByFieldName("name"); nn != nil {
			name = c.text(nn)
		}
		id := c.add(ir.KindKeywordArg, f, n, parent, name)
		c.convert(n.ChildByFieldName("value"), id, ir.FieldValue)
		return id

	case "subscript":
		id := c.add(ir.KindSubscript, f, n, parent, "")
		for i, ch := range named(n) {
			field := ir.FieldIndex
			if i == 0 {
				field = ir.FieldReceiver
			}
			c.convert(ch, id, field)
		}
		return id

	case "binary_operator", "boolean_operator":
		kind := ir.KindBinaryOp
		if n.Type() == "boolean_operator" {
			kind = ir.KindBoolOp
		}
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		id := c.add(kind, f, n, parent, op)
		c.convert(n.ChildByFieldName("left"), id, ir.FieldLeft)
		c.convert(n.ChildByFieldName("right"), id, ir.FieldRight)
		return id

	case "comparison_operator":
		var ops []string
		for i := 0; i < int(n.ChildCount()); i++ {
			if ch := n.Child(i); ch != nil && !ch.IsNamed() {
				ops = append(ops, ch.Type())
			}
		}
		id := c.add(ir.KindCompare, f, n, parent, strings.Join(ops, " "))
		c.each(n, id, ir.FieldValue)
		return id

	case "not_operator":
		id := c.add(ir.KindNot, f, n, parent, "not")
		c.convert(n.ChildByFieldName("argument"), id, ir.FieldValue)
		return id

	case "unary_operator":
		op := ""
		if o := n.ChildByFieldName("operator"); o != nil {
			op = o.Type()
		}
		id := c.add(ir.KindUnaryOp, f, n, parent, op)
		c.convert(n.ChildByFieldName("argument"), id, ir.FieldValue)
		return id

	case "parenthesized_expression":
		kids := named(n)
		if len(kids) == 1 {
			return c.convert(kids[0], parent, f)
		}
		return c.generic(n, parent, f)

	case "conditional_expression":
		id := c.add(ir.KindIfExp, f, n, parent, "")
		fields := []ir.Field{ir.FieldBody, ir.FieldCond, ir.FieldElse}
		for i, ch := range named(n) {
			if i < len(fields) {
				c.convert(ch, id, fields[i])
			}
		}
		return id

	case "none":
		return c.add(ir.KindNoneLit, f, n, parent, "None")
	case "true", "false":
		return c.add(ir.KindBoolLit, f, n, parent, c.text(n))
	case "integer":
		return c.add(ir.KindIntLit, f, n, parent, c.text(n))
	case "float":
		return c.add(ir.KindFloatLit, f, n, parent, c.text(n))
	case "ellipsis":
		return c.add(ir.KindEllipsis, f, n, parent, "...")

	case "string", "concatenated_string":
		id := c.add(ir.KindStringLit, f, n, parent, "")
		c.interpolations(n, id)
		return id

	case "list", "tuple", "set", "expression_list", "pattern_list", "tuple_pattern", "list_pattern":
		id := c.add(ir.KindCollection, f, n, parent, collectionName(n.Type()))
		c.each(n, id, ir.FieldValue)
		return id

	case "dictionary":
		id := c.add(ir.KindCollection, f, n, parent, "dict")
		for _, ch := range named(n) {
			if ch.Type() == "pair" {
				c.convert(ch.ChildByFieldName("key"), id, ir.FieldValue)
				c.convert(ch.ChildByFieldName("value"), id, ir.FieldValue)
				continue
			}
			c.convert(ch, id, ir.FieldValue)
		}
		return id

	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		return c.comprehension(n, parent, f)

	case "lambda":
		id := c.add(ir.KindLambda, f, n, parent, "lambda")
		if params := n.ChildByFieldName("parameters"); params != nil {
			c.params(params, id)
		}
		c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
		return id

	case "yield":
		id := c.add(ir.KindYield, f, n, parent, "")
		c.each(n, id, ir.FieldValue)
		return id

	case "type":
		// Annotations are not evaluated; parameters keep theirs as text.
		return ir.NoNode
	}
	return c.generic(n, parent, f)
}

func (c *converter) generic(n *sitter.Node, parent ir.NodeID, f ir.Field) ir.NodeID {
	id := c.add(ir.KindOther, f, n, parent, n.Type())
	c.each(n, id, ir.FieldNone)
	return id
}

func collectionName(typ string) string {
	switch typ {
	case "list", "list_pattern":
		return "list"
	case "set":
		return "set"
	}
	return "tuple"
}

func (c *converter) function(n *sitter.Node, parent ir.NodeID, f ir.Field, decos []*sitter.Node) ir.NodeID {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = c.text(nn)
	}
	id := c.add(ir.KindFunction, f, n, parent, name)
	c.decorators(decos, id)
	if params := n.ChildByFieldName("parameters"); params != nil {
		c.params(params, id)
	}
	c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
	return id
}

func (c *converter) class(n *sitter.Node, parent ir.NodeID, f ir.Field, decos []*sitter.Node) ir.NodeID {
	name := ""
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = c.text(nn)
	}
	id := c.add(ir.KindClass, f, n, parent, name)
	c.decorators(decos, id)
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		c.each(sup, id, ir.FieldBase)
	}
	c.convert(n.ChildByFieldName("body"), id, ir.FieldBody)
	return id
}

func (c *converter) decorators(decos []*sitter.Node, owner ir.NodeID) {
	for _, d := range decos {
		if kids := named(d); len(kids) > 0 {
			c.convert(kids[0], owner, ir.FieldDecorator)
		}
	}
}

// params adds one Param per declared name. Default values hang under their
// Param and are evaluated in the enclosing scope.
func (c *converter) params(n *sitter.Node, fn ir.NodeID) {
	for _, p := range named(n) {
		switch p.Type() {
		case "default_parameter", "typed_default_parameter":
			name := p.ChildByFieldName("name")
			if name == nil {
				continue
			}
			id := c.add(ir.KindParam, ir.FieldParam, name, fn, c.text(name))
			c.annotation(p, id)
			c.convert(p.ChildByFieldName("value"), id, ir.FieldValue)
		default:
			if ident := paramIdent(p); ident != nil {
				id := c.add(ir.KindParam, ir.FieldParam, ident, fn, c.text(ident))
				c.annotation(p, id)
			}
		}
	}
}

// annotation keeps a parameter's type as an opaque leaf holding its source
// text; names inside it are never resolved.
func (c *converter) annotation(p *sitter.Node, param ir.NodeID) {
	if typ := p.ChildByFieldName("type"); typ != nil {
		c.add(ir.KindOther, ir.FieldAnnotation, typ, param, c.text(typ))
	}
}

func paramIdent(n *sitter.Node) *sitter.Node {
	if n.Type() == "identifier" {
		return n
	}
	for _, ch := range named(n) {
		if ch.Type() == "type" {
			continue
		}
		if id := paramIdent(ch); id != nil {
			return id
		}
	}
	return nil
}

func (c *converter) handler(n *sitter.Node, try ir.NodeID) {
	id := c.add(ir.KindHandler, ir.FieldHandler, n, try, "")
	var exprs []*sitter.Node
	var body *sitter.Node
	for _, ch := range named(n) {
		if ch.Type() == "block" {
			body = ch
			continue
		}
		exprs = append(exprs, ch)
	}
	if len(exprs) > 0 {
		first := exprs[0]
		if first.Type() == "as_pattern" {
			kids := named(first)
			if len(kids) > 0 {
				c.convert(kids[0], id, ir.FieldValue)
			}
			if len(kids) > 1 {
				c.asTarget(kids[len(kids)-1], id, ir.FieldAlias)
			}
		} else {
			c.convert(first, id, ir.FieldValue)
			if len(exprs) > 1 {
				c.asTarget(exprs[1], id, ir.FieldAlias)
			}
		}
	}
	if body != nil {
		c.convert(body, id, ir.FieldBody)
	}
}

// asTarget converts the name side of "expr as name".
func (c *converter) asTarget(n *sitter.Node, parent ir.NodeID, f ir.Field) {
	if n.Type() == "as_pattern_target" {
		if kids := named(n); len(kids) > 0 {
			c.convert(kids[0], parent, f)
		}
		return
	}
	c.convert(n, parent, f)
}

func (c *converter) imports(n *sitter.Node, parent ir.NodeID, f ir.Field) ir.NodeID {
	id := c.add(ir.KindImport, f, n, parent, "")
	module := n.ChildByFieldName("module_name")
	for _, ch := range named(n) {
		if sameNode(ch, module) {
			continue
		}
		switch ch.Type() {
		case "dotted_name":
			parts := named(ch)
			if len(parts) == 0 {
				continue
			}
			// "import a.b" binds a; "from m import a" binds a.
			bound := parts[0]
			if n.Type() == "import_from_statement" {
				bound = parts[len(parts)-1]
			}
			c.add(ir.KindName, ir.FieldTarget, bound, id, c.text(bound))
		case "aliased_import":
			if alias := ch.ChildByFieldName("alias"); alias != nil {
				c.add(ir.KindName, ir.FieldTarget, alias, id, c.text(alias))
			}
		}
	}
	return id
}

func (c *converter) interpolations(n *sitter.Node, str ir.NodeID) {
	for _, ch := range named(n) {
		switch ch.Type() {
		case "interpolation":
			if kids := named(ch); len(kids) > 0 {
				c.convert(kids[0], str, ir.FieldValue)
			}
		case "string":
			c.interpolations(ch, str)
		}
	}
}

func (c *converter) comprehension(n *sitter.Node, parent ir.NodeID, f ir.Field) ir.NodeID {
	id := c.add(ir.KindComprehension, f, n, parent, n.Type())
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "pair" {
			c.convert(body.ChildByFieldName("key"), id, ir.FieldValue)
			c.convert(body.ChildByFieldName("value"), id, ir.FieldValue)
		} else {
			c.convert(body, id, ir.FieldValue)
		}
	}
	for _, ch := range named(n) {
		switch ch.Type() {
		case "for_in_clause":
			cf := c.add(ir.KindCompFor, ir.FieldNone, ch, id, "")
			c.convert(ch.ChildByFieldName("left"), cf, ir.FieldTarget)
			c.convert(ch.ChildByFieldName("right"), cf, ir.FieldBound)
		case "if_clause":
			ci := c.add(ir.KindCompIf, ir.FieldNone, ch, id, "")
			if kids := named(ch); len(kids) > 0 {
				c.convert(kids[0], ci, ir.FieldCond)
			}
		}
	}
	return id
}
