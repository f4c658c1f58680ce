package scope

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/codewithboateng/pylift/internal/ir"
)

// BindingKind classifies how a name was introduced.
type BindingKind uint8

const (
	BindInvalid BindingKind = iota
	BindParam
	BindLocal
	BindImport
	BindLoop
	BindComprehension
	BindHandler
	BindDef
)

func (k BindingKind) String() string {
	switch k {
	case BindParam:
		return "param"
	case BindLocal:
		return "local"
	case BindImport:
		return "import"
	case BindLoop:
		return "loop"
	case BindComprehension:
		return "comprehension"
	case BindHandler:
		return "handler"
	case BindDef:
		return "def"
	default:
		return "invalid"
	}
}

// Nullability is the per-binding tag of the value assigned. It is computed
// flow-insensitively; guards narrow it at use sites.
type Nullability uint8

const (
	Unknown Nullability = iota
	NonNull
	Null
	MaybeNull
)

func (n Nullability) String() string {
	switch n {
	case NonNull:
		return "non-null"
	case Null:
		return "null"
	case MaybeNull:
		return "maybe-null"
	default:
		return "unknown"
	}
}

// Nullable reports whether the value may be None.
func (n Nullability) Nullable() bool { return n == Null || n == MaybeNull }

// Binding is one name introduction.
type Binding struct {
	Name string
	// Node is the declaring node: the target Name, Param, Function or Class.
	Node ir.NodeID
	// Stmt is the statement that performs the binding (Assign, For, ...).
	Stmt        ir.NodeID
	Scope       ScopeID
	Kind        BindingKind
	Nullability Nullability
	// Shadows is the outer binding this one hides, if any.
	Shadows BindingID
}

// Escape is a bitset of ways a binding's value leaves its scope.
type Escape uint8

const (
	EscapeReturn Escape = 1 << iota
	EscapeYield
	EscapeCall
)

type bindings struct {
	data []Binding
}

func (b *bindings) add(v Binding) BindingID {
	value, err := safecast.Conv[uint32](len(b.data))
	if err != nil {
		panic(fmt.Errorf("binding arena overflow: %w", err))
	}
	b.data = append(b.data, v)
	return BindingID(value)
}

func (b *bindings) get(id BindingID) *Binding {
	if !id.Valid() || int(id) >= len(b.data) {
		return nil
	}
	return &b.data[id]
}
