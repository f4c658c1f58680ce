// Package scope resolves Python lexical scopes and bindings over an ir.Tree.
package scope

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/codewithboateng/pylift/internal/ir"
)

// ScopeID identifies a scope in the resolver arena.
type ScopeID uint32

// NoScope marks the absence of a scope reference.
const NoScope ScopeID = 0

func (id ScopeID) Valid() bool { return id != NoScope }

// BindingID identifies a binding in the resolver arena.
type BindingID uint32

// NoBinding is returned for unresolved references (builtins, externals).
const NoBinding BindingID = 0

func (id BindingID) Valid() bool { return id != NoBinding }

// Kind enumerates the binding regions Python has.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindModule
	KindFunction
	KindLambda
	KindClass
	KindComprehension
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindFunction:
		return "function"
	case KindLambda:
		return "lambda"
	case KindClass:
		return "class"
	case KindComprehension:
		return "comprehension"
	default:
		return "invalid"
	}
}

// DeclKind records a global or nonlocal statement for a name.
type DeclKind uint8

const (
	DeclNone DeclKind = iota
	DeclGlobal
	DeclNonlocal
)

// Scope is one binding region. Parent is a plain index; the module scope
// has none.
type Scope struct {
	Kind   Kind
	Owner  ir.NodeID
	Parent ScopeID
	// Names lists the bindings of each name in source order.
	Names    map[string][]BindingID
	Declared map[string]DeclKind
	Children []ScopeID
}

type scopes struct {
	data []Scope
}

func (s *scopes) add(kind Kind, owner ir.NodeID, parent ScopeID) ScopeID {
	value, err := safecast.Conv[uint32](len(s.data))
	if err != nil {
		panic(fmt.Errorf("scope arena overflow: %w", err))
	}
	id := ScopeID(value)
	s.data = append(s.data, Scope{
		Kind:     kind,
		Owner:    owner,
		Parent:   parent,
		Names:    make(map[string][]BindingID),
		Declared: make(map[string]DeclKind),
	})
	if parent.Valid() {
		p := &s.data[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

func (s *scopes) get(id ScopeID) *Scope {
	if !id.Valid() || int(id) >= len(s.data) {
		return nil
	}
	return &s.data[id]
}

func scopeKindOf(k ir.Kind) Kind {
	switch k {
	case ir.KindModule:
		return KindModule
	case ir.KindFunction:
		return KindFunction
	case ir.KindLambda:
		return KindLambda
	case ir.KindClass:
		return KindClass
	case ir.KindComprehension:
		return KindComprehension
	}
	return KindInvalid
}
