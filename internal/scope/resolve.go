package scope

import (
	"errors"
	"fmt"

	"github.com/codewithboateng/pylift/internal/ir"
)

// Options tunes resolution.
type Options struct {
	// NullableCalls extends DefaultNullableCalls.
	NullableCalls []string
}

// Resolve builds the scope and binding arenas for unit.
func Resolve(unit *ir.SourceUnit) (*AnnotatedTree, error) {
	return ResolveWith(unit, Options{})
}

// ResolveWith is Resolve with explicit options. Resolution is one pre-order
// pass with a scope stack; when a scope is entered its binding sites are
// collected first so that a name assigned anywhere in a function is local
// to the whole function body.
func ResolveWith(unit *ir.SourceUnit, opts Options) (*AnnotatedTree, error) {
	if unit == nil || unit.Tree == nil || !unit.Tree.Root.Valid() {
		return nil, errors.New("resolve: empty source unit")
	}
	t := unit.Tree
	if t.Kind(t.Root) != ir.KindModule {
		return nil, fmt.Errorf("resolve %s: root is %s, want module", unit.Path, t.Kind(t.Root))
	}
	size := t.Len() + 1
	r := &resolver{
		tree: t,
		at: &AnnotatedTree{
			Unit:       unit,
			scopes:     scopes{data: make([]Scope, 1, 16)},
			bindings:   bindings{data: make([]Binding, 1, 64)},
			nodeScope:  make([]ScopeID, size),
			ownedScope: make([]ScopeID, size),
			refs:       make([]BindingID, size),
			declAt:     make([]BindingID, size),
			reads:      make(map[BindingID][]ir.NodeID),
		},
		nullable: newNullableCalls(opts.NullableCalls),
	}
	module := r.open(t.Root, NoScope)
	r.at.nodeScope[t.Root] = module
	for _, c := range t.Children(t.Root) {
		r.visit(c, module)
	}
	r.refineGets()
	r.computeEscapes()
	return r.at, nil
}

type resolver struct {
	tree     *ir.Tree
	at       *AnnotatedTree
	nullable nullableCalls
}

func (r *resolver) open(owner ir.NodeID, parent ScopeID) ScopeID {
	id := r.at.scopes.add(scopeKindOf(r.tree.Kind(owner)), owner, parent)
	r.at.ownedScope[owner] = id
	r.prescan(id)
	return id
}

// visit records the evaluation scope of id and resolves loads beneath it.
func (r *resolver) visit(id ir.NodeID, s ScopeID) {
	t := r.tree
	r.at.nodeScope[id] = s
	n := t.Node(id)
	switch n.Kind {
	case ir.KindFunction, ir.KindLambda:
		for _, c := range t.ChildrenOf(id, ir.FieldDecorator) {
			r.visit(c, s)
		}
		inner := r.open(id, s)
		for _, p := range t.ChildrenOf(id, ir.FieldParam) {
			r.at.nodeScope[p] = inner
			// Defaults are evaluated where the function is defined.
			for _, d := range t.Children(p) {
				r.visit(d, s)
			}
		}
		if body := t.Child(id, ir.FieldBody); body.Valid() {
			r.visit(body, inner)
		}
		return

	case ir.KindClass:
		for _, c := range t.Children(id) {
			if f := t.Node(c).Field; f == ir.FieldDecorator || f == ir.FieldBase {
				r.visit(c, s)
			}
		}
		inner := r.open(id, s)
		if body := t.Child(id, ir.FieldBody); body.Valid() {
			r.visit(body, inner)
		}
		return

	case ir.KindComprehension:
		// The outermost iterable is evaluated in the enclosing scope.
		first := firstCompFor(t, id)
		outerIter := t.Child(first, ir.FieldBound)
		if outerIter.Valid() {
			r.visit(outerIter, s)
		}
		inner := r.open(id, s)
		for _, c := range t.Children(id) {
			if c != first {
				r.visit(c, inner)
				continue
			}
			r.at.nodeScope[c] = inner
			for _, cc := range t.Children(c) {
				if cc != outerIter {
					r.visit(cc, inner)
				}
			}
		}
		return

	case ir.KindName:
		if n.Field == ir.FieldName {
			if pk := t.Kind(n.Parent); pk == ir.KindGlobal || pk == ir.KindNonlocal {
				return
			}
		}
		if r.at.declAt[id].Valid() {
			// x += 1 reads the previous binding before writing a new one.
			if t.Kind(n.Parent) == ir.KindAugAssign {
				r.resolveLoad(id, s)
			}
			return
		}
		r.resolveLoad(id, s)
		return
	}
	for _, c := range n.Children {
		r.visit(c, s)
	}
}

func firstCompFor(t *ir.Tree, comp ir.NodeID) ir.NodeID {
	for _, c := range t.Children(comp) {
		if t.Kind(c) == ir.KindCompFor {
			return c
		}
	}
	return ir.NoNode
}

func (r *resolver) resolveLoad(id ir.NodeID, s ScopeID) {
	n := r.tree.Node(id)
	b := r.lookup(s, n.Text, n.Span.Start)
	if !b.Valid() {
		return
	}
	r.at.refs[id] = b
	r.at.reads[b] = append(r.at.reads[b], id)
}

// lookup finds the binding a load of name at offset refers to. Class scopes
// are only visible to code directly in their body.
func (r *resolver) lookup(from ScopeID, name string, at uint32) BindingID {
	s := from
	if r.at.scopes.get(from).Declared[name] == DeclGlobal {
		s = r.moduleScope()
	}
	for s.Valid() {
		sc := r.at.scopes.get(s)
		if s != from && sc.Kind == KindClass {
			s = sc.Parent
			continue
		}
		if ids := sc.Names[name]; len(ids) > 0 {
			return r.pick(ids, at)
		}
		s = sc.Parent
	}
	return NoBinding
}

// pick returns the latest binding that starts before at, falling back to
// the first binding of the name.
func (r *resolver) pick(ids []BindingID, at uint32) BindingID {
	best := ids[0]
	for _, b := range ids {
		if r.bindingStart(b) < at {
			best = b
		}
	}
	return best
}

func (r *resolver) bindingStart(b BindingID) uint32 {
	return r.tree.Node(r.at.bindings.get(b).Node).Span.Start
}

func (r *resolver) moduleScope() ScopeID { return ScopeID(1) }

// prescan collects every binding site of scope s before its body is
// resolved.
func (r *resolver) prescan(s ScopeID) {
	t := r.tree
	sc := r.at.scopes.get(s)
	owner := sc.Owner

	var roots []ir.NodeID
	switch sc.Kind {
	case KindModule:
		roots = t.Children(owner)
	case KindFunction, KindLambda, KindClass:
		roots = []ir.NodeID{t.Child(owner, ir.FieldBody)}
	case KindComprehension:
		first := firstCompFor(t, owner)
		outerIter := t.Child(first, ir.FieldBound)
		for _, c := range t.Children(owner) {
			if c != first {
				roots = append(roots, c)
				continue
			}
			for _, cc := range t.Children(c) {
				if cc != outerIter {
					roots = append(roots, cc)
				}
			}
		}
	}

	for _, root := range roots {
		r.scanDecls(root, sc)
	}
	for _, p := range t.ChildrenOf(owner, ir.FieldParam) {
		r.bind(s, p, owner, BindParam, Unknown)
	}
	for _, root := range roots {
		r.scanBindings(root, s)
	}
	if sc.Kind == KindComprehension {
		for _, c := range t.Children(owner) {
			if t.Kind(c) == ir.KindCompFor {
				r.bindTargets(s, t.Child(c, ir.FieldTarget), c, BindComprehension, Unknown)
			}
		}
	}
}

// scanDecls records global/nonlocal statements directly in a scope region.
func (r *resolver) scanDecls(root ir.NodeID, sc *Scope) {
	t := r.tree
	t.Walk(root, func(id ir.NodeID) bool {
		switch t.Kind(id) {
		case ir.KindFunction, ir.KindLambda, ir.KindClass, ir.KindComprehension:
			return false
		case ir.KindGlobal, ir.KindNonlocal:
			kind := DeclGlobal
			if t.Kind(id) == ir.KindNonlocal {
				kind = DeclNonlocal
			}
			for _, c := range t.ChildrenOf(id, ir.FieldName) {
				sc.Declared[t.Node(c).Text] = kind
			}
			return false
		}
		return true
	})
}

// scanBindings walks one scope region and binds every name introduced in
// it. Nested scopes contribute only what is evaluated in the region.
func (r *resolver) scanBindings(id ir.NodeID, s ScopeID) {
	t := r.tree
	n := t.Node(id)
	if n == nil {
		return
	}
	switch n.Kind {
	case ir.KindFunction, ir.KindClass:
		r.bind(s, id, id, BindDef, NonNull)
		for _, c := range n.Children {
			switch t.Node(c).Field {
			case ir.FieldDecorator, ir.FieldBase:
				r.scanBindings(c, s)
			case ir.FieldParam:
				for _, d := range t.Children(c) {
					r.scanBindings(d, s)
				}
			}
		}
		return
	case ir.KindLambda:
		for _, p := range t.ChildrenOf(id, ir.FieldParam) {
			for _, d := range t.Children(p) {
				r.scanBindings(d, s)
			}
		}
		return
	case ir.KindComprehension:
		r.scanBindings(t.Child(firstCompFor(t, id), ir.FieldBound), s)
		r.scanWalrus(id, s)
		return
	case ir.KindAssign:
		targets := t.ChildrenOf(id, ir.FieldTarget)
		value := t.Child(id, ir.FieldValue)
		null := Unknown
		if len(targets) == 1 && t.Kind(targets[0]) == ir.KindName {
			null = r.nullable.classify(t, value)
		}
		for _, tg := range targets {
			r.bindTargets(s, tg, id, BindLocal, null)
		}
		r.scanBindings(value, s)
		return
	case ir.KindAugAssign:
		r.bindTargets(s, t.Child(id, ir.FieldTarget), id, BindLocal, Unknown)
		r.scanBindings(t.Child(id, ir.FieldValue), s)
		return
	case ir.KindFor:
		r.bindTargets(s, t.Child(id, ir.FieldTarget), id, BindLoop, Unknown)
	case ir.KindWith:
		for _, tg := range t.ChildrenOf(id, ir.FieldTarget) {
			r.bindTargets(s, tg, id, BindLocal, Unknown)
		}
	case ir.KindHandler:
		if alias := t.Child(id, ir.FieldAlias); alias.Valid() {
			r.bindTargets(s, alias, id, BindHandler, NonNull)
		}
	case ir.KindImport:
		for _, tg := range t.ChildrenOf(id, ir.FieldTarget) {
			r.bind(s, tg, id, BindImport, NonNull)
		}
		return
	case ir.KindGlobal, ir.KindNonlocal:
		return
	}
	for _, c := range n.Children {
		if r.at.declAt[c].Valid() {
			continue
		}
		r.scanBindings(c, s)
	}
}

// scanWalrus binds := targets inside a comprehension to the scope that
// contains the comprehension.
func (r *resolver) scanWalrus(comp ir.NodeID, s ScopeID) {
	t := r.tree
	t.Walk(comp, func(id ir.NodeID) bool {
		switch t.Kind(id) {
		case ir.KindFunction, ir.KindLambda, ir.KindClass:
			return false
		case ir.KindAssign:
			if t.Node(id).Text == ":=" {
				target := t.Child(id, ir.FieldTarget)
				r.bindTargets(s, target, id, BindLocal, r.nullable.classify(t, t.Child(id, ir.FieldValue)))
			}
		}
		return true
	})
}

func (r *resolver) bindTargets(s ScopeID, target, stmt ir.NodeID, kind BindingKind, null Nullability) {
	t := r.tree
	switch t.Kind(target) {
	case ir.KindName:
		r.bind(s, target, stmt, kind, null)
	case ir.KindCollection, ir.KindOther:
		for _, c := range t.Children(target) {
			r.bindTargets(s, c, stmt, kind, Unknown)
		}
	}
}

func (r *resolver) bind(s ScopeID, node, stmt ir.NodeID, kind BindingKind, null Nullability) BindingID {
	if r.at.declAt[node].Valid() {
		return r.at.declAt[node]
	}
	t := r.tree
	name := t.Node(node).Text
	if kind == BindLocal && t.Kind(stmt) == ir.KindAssign && t.Node(stmt).Text == ":=" {
		// := in a comprehension binds in the containing function.
		for sc := r.at.scopes.get(s); sc.Kind == KindComprehension && sc.Parent.Valid(); sc = r.at.scopes.get(s) {
			s = sc.Parent
		}
	}
	target := s
	switch r.at.scopes.get(s).Declared[name] {
	case DeclGlobal:
		target = r.moduleScope()
	case DeclNonlocal:
		if outer := r.enclosingFunctionWith(s, name); outer.Valid() {
			target = outer
		}
	}

	b := Binding{Name: name, Node: node, Stmt: stmt, Scope: target, Kind: kind, Nullability: null}
	if target == s {
		b.Shadows = r.shadowed(s, name)
	}
	id := r.at.bindings.add(b)
	r.at.declAt[node] = id
	r.insertOrdered(target, name, id)
	if b.Shadows.Valid() {
		r.at.shadowing = append(r.at.shadowing, id)
	}
	return id
}

func (r *resolver) insertOrdered(s ScopeID, name string, id BindingID) {
	sc := r.at.scopes.get(s)
	ids := sc.Names[name]
	start := r.bindingStart(id)
	i := len(ids)
	for i > 0 && r.bindingStart(ids[i-1]) > start {
		i--
	}
	ids = append(ids, NoBinding)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	sc.Names[name] = ids
}

func (r *resolver) enclosingFunctionWith(s ScopeID, name string) ScopeID {
	for p := r.at.scopes.get(s).Parent; p.Valid(); p = r.at.scopes.get(p).Parent {
		sc := r.at.scopes.get(p)
		if sc.Kind == KindModule {
			return NoScope
		}
		if sc.Kind == KindFunction && len(sc.Names[name]) > 0 {
			return p
		}
	}
	return NoScope
}

// shadowed returns the outer binding a new binding of name in s hides: the
// latest binding of name in the nearest enclosing module or function scope
// that precedes the definition of s. Same-scope rebinding never counts.
func (r *resolver) shadowed(s ScopeID, name string) BindingID {
	sc := r.at.scopes.get(s)
	switch sc.Kind {
	case KindFunction, KindLambda, KindComprehension:
	default:
		return NoBinding
	}
	ownerStart := r.tree.Node(sc.Owner).Span.Start
	for p := sc.Parent; p.Valid(); p = r.at.scopes.get(p).Parent {
		outer := r.at.scopes.get(p)
		if outer.Kind == KindClass {
			continue
		}
		ids := outer.Names[name]
		if len(ids) == 0 {
			continue
		}
		if outer.Kind != KindModule && outer.Kind != KindFunction {
			return NoBinding
		}
		found := NoBinding
		for _, b := range ids {
			if r.bindingStart(b) < ownerStart {
				found = b
			}
		}
		return found
	}
	return NoBinding
}

func (r *resolver) computeEscapes() {
	t := r.tree
	r.at.escapes = make([]Escape, len(r.at.bindings.data))
	for b, reads := range r.at.reads {
		var e Escape
		for _, ref := range reads {
			e |= escapeOf(t, ref)
		}
		r.at.escapes[b] = e
	}
}

func escapeOf(t *ir.Tree, ref ir.NodeID) Escape {
	n := t.Node(ref)
	parent := t.Node(n.Parent)
	if parent == nil {
		return 0
	}
	switch parent.Kind {
	case ir.KindReturn:
		return EscapeReturn
	case ir.KindYield:
		return EscapeYield
	case ir.KindCall:
		if n.Field == ir.FieldArg {
			return EscapeCall
		}
	case ir.KindCollection:
		if t.Kind(parent.Parent) == ir.KindReturn {
			return EscapeReturn
		}
	}
	return 0
}
