package scope

import "github.com/codewithboateng/pylift/internal/ir"

// AnnotatedTree is a SourceUnit plus its resolved scopes and bindings. It is
// immutable after Resolve returns and safe for concurrent reads.
type AnnotatedTree struct {
	Unit *ir.SourceUnit

	scopes    scopes
	bindings  bindings
	shadowing []BindingID
	escapes   []Escape

	// Per-node tables indexed by ir.NodeID.
	nodeScope  []ScopeID
	ownedScope []ScopeID
	refs       []BindingID
	declAt     []BindingID

	reads map[BindingID][]ir.NodeID
}

func (a *AnnotatedTree) Tree() *ir.Tree { return a.Unit.Tree }

// Module returns the module scope.
func (a *AnnotatedTree) Module() ScopeID { return ScopeID(1) }

// ScopeOf returns the scope a node is evaluated in. For a function, lambda,
// class or comprehension node that is the enclosing scope, not the one it
// opens.
func (a *AnnotatedTree) ScopeOf(id ir.NodeID) ScopeID {
	if int(id) >= len(a.nodeScope) {
		return NoScope
	}
	return a.nodeScope[id]
}

// OwnedScope returns the scope opened by id, or NoScope.
func (a *AnnotatedTree) OwnedScope(id ir.NodeID) ScopeID {
	if int(id) >= len(a.ownedScope) {
		return NoScope
	}
	return a.ownedScope[id]
}

func (a *AnnotatedTree) Scope(id ScopeID) *Scope { return a.scopes.get(id) }

func (a *AnnotatedTree) Binding(id BindingID) *Binding { return a.bindings.get(id) }

// ResolveRef returns the binding a load refers to, or NoBinding for
// builtins and external names.
func (a *AnnotatedTree) ResolveRef(id ir.NodeID) BindingID {
	if int(id) >= len(a.refs) {
		return NoBinding
	}
	return a.refs[id]
}

// BindingAt returns the binding declared by a target node.
func (a *AnnotatedTree) BindingAt(id ir.NodeID) BindingID {
	if int(id) >= len(a.declAt) {
		return NoBinding
	}
	return a.declAt[id]
}

// Shadowing lists bindings that hide an outer binding, in creation order.
func (a *AnnotatedTree) Shadowing() []BindingID { return a.shadowing }

// Reads returns the load sites of a binding in pre-order.
func (a *AnnotatedTree) Reads(id BindingID) []ir.NodeID { return a.reads[id] }

// Escapes reports how a binding's value leaves its scope.
func (a *AnnotatedTree) Escapes(id BindingID) Escape {
	if int(id) >= len(a.escapes) {
		return 0
	}
	return a.escapes[id]
}

// Declared reports a global/nonlocal statement for name in scope s.
func (a *AnnotatedTree) Declared(s ScopeID, name string) DeclKind {
	if sc := a.scopes.get(s); sc != nil {
		return sc.Declared[name]
	}
	return DeclNone
}

// Bindings returns the bindings of name in scope s in source order.
func (a *AnnotatedTree) Bindings(s ScopeID, name string) []BindingID {
	if sc := a.scopes.get(s); sc != nil {
		return sc.Names[name]
	}
	return nil
}

// NumScopes reports the number of scopes excluding the sentinel.
func (a *AnnotatedTree) NumScopes() int { return len(a.scopes.data) - 1 }

