package scope

import (
	"strings"
	"unicode"

	"github.com/codewithboateng/pylift/internal/ir"
)

// DefaultNullableCalls lists callees whose result may be None. A leading
// "*." matches any receiver. Mapping .get calls are classified separately,
// once the receiver is resolved.
var DefaultNullableCalls = []string{
	"os.environ.get",
	"os.getenv",
	"re.match",
	"re.search",
	"re.fullmatch",
	"shutil.which",
}

var nonNullBuiltins = map[string]bool{
	"list": true, "dict": true, "set": true, "tuple": true, "frozenset": true,
	"str": true, "int": true, "float": true, "bool": true, "bytes": true,
	"len": true, "sorted": true, "range": true, "repr": true, "format": true,
	"object": true, "enumerate": true, "zip": true,
}

type nullableCalls struct {
	exact  map[string]bool
	suffix map[string]bool
}

func newNullableCalls(extra []string) nullableCalls {
	nc := nullableCalls{exact: map[string]bool{}, suffix: map[string]bool{}}
	for _, list := range [][]string{DefaultNullableCalls, extra} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if rest, ok := strings.CutPrefix(name, "*."); ok {
				nc.suffix[rest] = true
			} else if name != "" {
				nc.exact[name] = true
			}
		}
	}
	return nc
}

func (nc nullableCalls) match(callee, attr string) bool {
	if nc.exact[callee] {
		return true
	}
	return attr != "" && nc.suffix[attr]
}

// DottedName renders a Name or an Attribute chain of Names as "a.b.c". It
// returns "" for anything else.
func DottedName(t *ir.Tree, id ir.NodeID) string {
	n := t.Node(id)
	if n == nil {
		return ""
	}
	switch n.Kind {
	case ir.KindName:
		return n.Text
	case ir.KindAttribute:
		recv := DottedName(t, t.Child(id, ir.FieldReceiver))
		if recv == "" {
			return ""
		}
		return recv + "." + n.Text
	}
	return ""
}

func (nc nullableCalls) classify(t *ir.Tree, id ir.NodeID) Nullability {
	n := t.Node(id)
	if n == nil {
		return Unknown
	}
	switch n.Kind {
	case ir.KindNoneLit:
		return Null
	case ir.KindStringLit, ir.KindIntLit, ir.KindFloatLit, ir.KindBoolLit, ir.KindEllipsis,
		ir.KindCollection, ir.KindComprehension, ir.KindLambda,
		ir.KindCompare, ir.KindNot, ir.KindBinaryOp, ir.KindUnaryOp:
		return NonNull
	case ir.KindAssign:
		return nc.classify(t, t.Child(id, ir.FieldValue))
	case ir.KindIfExp:
		return join(nc.classify(t, t.Child(id, ir.FieldBody)), nc.classify(t, t.Child(id, ir.FieldElse)))
	case ir.KindBoolOp:
		right := nc.classify(t, t.Child(id, ir.FieldRight))
		if n.Text == "or" && right == NonNull {
			return NonNull
		}
		return join(nc.classify(t, t.Child(id, ir.FieldLeft)), right)
	case ir.KindCall:
		return nc.classifyCall(t, id)
	}
	return Unknown
}

func (nc nullableCalls) classifyCall(t *ir.Tree, id ir.NodeID) Nullability {
	fn := t.Child(id, ir.FieldFunc)
	callee := DottedName(t, fn)
	args := t.ChildrenOf(id, ir.FieldArg)
	attr := ""
	if t.Kind(fn) == ir.KindAttribute {
		attr = t.Node(fn).Text
	}
	switch {
	case callee == "getattr" && len(args) == 3,
		callee == "next" && len(args) == 2:
		if t.Kind(args[len(args)-1]) == ir.KindNoneLit {
			return MaybeNull
		}
		return Unknown
	case attr == "get" && len(args) >= 2 && t.Kind(args[1]) != ir.KindNoneLit:
		return Unknown
	case nc.match(callee, attr):
		return MaybeNull
	case nonNullBuiltins[callee]:
		return NonNull
	case t.Kind(fn) == ir.KindName && callee != "" && unicode.IsUpper(rune(callee[0])):
		return NonNull
	}
	return Unknown
}

func join(a, b Nullability) Nullability {
	switch {
	case a == Null && b == Null:
		return Null
	case a.Nullable() || b.Nullable():
		return MaybeNull
	case a == NonNull && b == NonNull:
		return NonNull
	}
	return Unknown
}

var mappingTypes = map[string]bool{
	"dict": true, "Dict": true, "Mapping": true, "MutableMapping": true,
	"defaultdict": true, "DefaultDict": true, "OrderedDict": true, "Counter": true,
}

// mappingName strips a module qualifier and type arguments: "typing.Dict[str, int]"
// becomes "Dict".
func mappingName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// getCall splits recv.get(args...) into its receiver and positional
// arguments. Keyword or splat arguments disqualify the call.
func getCall(t *ir.Tree, id ir.NodeID) (ir.NodeID, []ir.NodeID, bool) {
	if t.Kind(id) != ir.KindCall {
		return ir.NoNode, nil, false
	}
	fn := t.Child(id, ir.FieldFunc)
	if t.Kind(fn) != ir.KindAttribute || t.Node(fn).Text != "get" {
		return ir.NoNode, nil, false
	}
	args := t.ChildrenOf(id, ir.FieldArg)
	for _, a := range args {
		if k := t.Kind(a); k == ir.KindKeywordArg || k == ir.KindOther {
			return ir.NoNode, nil, false
		}
	}
	return t.Child(fn, ir.FieldReceiver), args, true
}

// refineGets tags x = m.get(k) and x = m.get(k, None) as MaybeNull once m
// resolves to a mapping. The two-argument form only needs a receiver that
// is a plain name not bound by an import, which rules out module-level
// HTTP helpers such as requests.get.
func (r *resolver) refineGets() {
	t := r.tree
	for i := 1; i < len(r.at.bindings.data); i++ {
		b := &r.at.bindings.data[i]
		if b.Kind != BindLocal || b.Nullability != Unknown || t.Kind(b.Stmt) != ir.KindAssign ||
			len(t.ChildrenOf(b.Stmt, ir.FieldTarget)) != 1 || t.Node(b.Node).Parent != b.Stmt {
			continue
		}
		recv, args, ok := getCall(t, t.Child(b.Stmt, ir.FieldValue))
		if !ok {
			continue
		}
		switch len(args) {
		case 1:
			if r.holdsMapping(recv) {
				b.Nullability = MaybeNull
			}
		case 2:
			if t.Kind(args[1]) != ir.KindNoneLit {
				continue
			}
			if DottedName(t, recv) == "os.environ" {
				b.Nullability = MaybeNull
				continue
			}
			if t.Kind(recv) != ir.KindName {
				continue
			}
			if rb := r.at.bindings.get(r.at.refs[recv]); rb == nil || rb.Kind != BindImport {
				b.Nullability = MaybeNull
			}
		}
	}
}

// holdsMapping reports whether recv is os.environ or a name bound to a
// dict display, dict comprehension, mapping constructor or a parameter
// annotated with a mapping type.
func (r *resolver) holdsMapping(recv ir.NodeID) bool {
	t := r.tree
	if DottedName(t, recv) == "os.environ" {
		return true
	}
	if t.Kind(recv) != ir.KindName {
		return false
	}
	b := r.at.bindings.get(r.at.refs[recv])
	if b == nil {
		return false
	}
	switch b.Kind {
	case BindParam:
		ann := t.Child(b.Node, ir.FieldAnnotation)
		return ann.Valid() && mappingTypes[mappingName(t.Node(ann).Text)]
	case BindLocal:
		if t.Kind(b.Stmt) != ir.KindAssign || t.Node(b.Node).Parent != b.Stmt {
			return false
		}
		v := t.Node(t.Child(b.Stmt, ir.FieldValue))
		if v == nil {
			return false
		}
		switch v.Kind {
		case ir.KindCollection:
			return v.Text == "dict"
		case ir.KindComprehension:
			return v.Text == "dictionary_comprehension"
		case ir.KindCall:
			fn := t.Child(t.Child(b.Stmt, ir.FieldValue), ir.FieldFunc)
			return mappingTypes[mappingName(DottedName(t, fn))]
		}
	}
	return false
}
