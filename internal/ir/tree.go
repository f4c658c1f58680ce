package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// NodeID addresses a Node inside its Tree. The zero value means "no node".
type NodeID uint32

const NoNode NodeID = 0

func (id NodeID) Valid() bool { return id != NoNode }

// Kind is the structural category of a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindModule
	KindFunction
	KindLambda
	KindClass
	KindComprehension
	KindCompFor
	KindCompIf
	KindBlock
	KindFor
	KindWhile
	KindIf
	KindIfExp
	KindWith
	KindTry
	KindHandler
	KindAssign
	KindAugAssign
	KindReturn
	KindRaise
	KindAssert
	KindPass
	KindBreak
	KindContinue
	KindGlobal
	KindNonlocal
	KindImport
	KindExprStmt
	KindYield
	KindCall
	KindKeywordArg
	KindAttribute
	KindSubscript
	KindName
	KindParam
	KindBinaryOp
	KindUnaryOp
	KindCompare
	KindBoolOp
	KindNot
	KindNoneLit
	KindBoolLit
	KindIntLit
	KindFloatLit
	KindStringLit
	KindEllipsis
	KindCollection
	KindOther

	kindCount
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindModule:        "module",
	KindFunction:      "function",
	KindLambda:        "lambda",
	KindClass:         "class",
	KindComprehension: "comprehension",
	KindCompFor:       "comp_for",
	KindCompIf:        "comp_if",
	KindBlock:         "block",
	KindFor:           "for",
	KindWhile:         "while",
	KindIf:            "if",
	KindIfExp:         "if_exp",
	KindWith:          "with",
	KindTry:           "try",
	KindHandler:       "handler",
	KindAssign:        "assign",
	KindAugAssign:     "aug_assign",
	KindReturn:        "return",
	KindRaise:         "raise",
	KindAssert:        "assert",
	KindPass:          "pass",
	KindBreak:         "break",
	KindContinue:      "continue",
	KindGlobal:        "global",
	KindNonlocal:      "nonlocal",
	KindImport:        "import",
	KindExprStmt:      "expr_stmt",
	KindYield:         "yield",
	KindCall:          "call",
	KindKeywordArg:    "keyword_arg",
	KindAttribute:     "attribute",
	KindSubscript:     "subscript",
	KindName:          "name",
	KindParam:         "param",
	KindBinaryOp:      "binary_op",
	KindUnaryOp:       "unary_op",
	KindCompare:       "compare",
	KindBoolOp:        "bool_op",
	KindNot:           "not",
	KindNoneLit:       "none",
	KindBoolLit:       "bool",
	KindIntLit:        "int",
	KindFloatLit:      "float",
	KindStringLit:     "string",
	KindEllipsis:      "ellipsis",
	KindCollection:    "collection",
	KindOther:         "other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s && Kind(k) != KindInvalid {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}

// KindSet is a bitset of kinds used as a matcher filter.
type KindSet uint64

func Kinds(ks ...Kind) KindSet {
	var s KindSet
	for _, k := range ks {
		s |= 1 << k
	}
	return s
}

func (s KindSet) Has(k Kind) bool { return s&(1<<k) != 0 }

// Names lists the kinds in s in declaration order.
func (s KindSet) Names() []string {
	var out []string
	for k := KindModule; k < kindCount; k++ {
		if s.Has(k) {
			out = append(out, k.String())
		}
	}
	return out
}

// Field is the syntactic role a Node plays inside its parent.
type Field uint8

const (
	FieldNone Field = iota
	FieldTarget
	FieldValue
	FieldBound
	FieldBody
	FieldCond
	FieldElse
	FieldFinally
	FieldHandler
	FieldAlias
	FieldReceiver
	FieldFunc
	FieldArg
	FieldParam
	FieldIndex
	FieldLeft
	FieldRight
	FieldName
	FieldDecorator
	FieldBase
	FieldAnnotation
)

var fieldNames = [...]string{
	FieldNone:       "",
	FieldTarget:     "target",
	FieldValue:      "value",
	FieldBound:      "bound",
	FieldBody:       "body",
	FieldCond:       "cond",
	FieldElse:       "else",
	FieldFinally:    "finally",
	FieldHandler:    "handler",
	FieldAlias:      "alias",
	FieldReceiver:   "receiver",
	FieldFunc:       "func",
	FieldArg:        "arg",
	FieldParam:      "param",
	FieldIndex:      "index",
	FieldLeft:       "left",
	FieldRight:      "right",
	FieldName:       "name",
	FieldDecorator:  "decorator",
	FieldBase:       "base",
	FieldAnnotation: "annotation",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", uint8(f))
}

// Node is one element of the structural tree. Parent is a plain index and
// carries no ownership.
type Node struct {
	Kind     Kind
	Field    Field
	Span     Span
	Parent   NodeID
	Children []NodeID
	// Text holds the identifier for names, params, attributes, functions
	// and classes, the operator for operator nodes and the literal text
	// for number literals.
	Text string
}

// Tree is the arena of Nodes for one source unit. Index 0 is reserved and
// IDs are allocated in pre-order, so a parent always has a smaller ID than
// its children.
type Tree struct {
	nodes []Node
	Root  NodeID
}

// NewTree creates an empty arena with an optional capacity hint.
func NewTree(capacity int) *Tree {
	if capacity <= 0 {
		capacity = 64
	}
	return &Tree{nodes: make([]Node, 1, capacity+1)}
}

// Add allocates a node and links it under parent.
func (t *Tree) Add(kind Kind, field Field, span Span, parent NodeID, text string) NodeID {
	value, err := safecast.Conv[uint32](len(t.nodes))
	if err != nil {
		panic(fmt.Errorf("node arena overflow: %w", err))
	}
	id := NodeID(value)
	t.nodes = append(t.nodes, Node{
		Kind:   kind,
		Field:  field,
		Span:   span,
		Parent: parent,
		Text:   text,
	})
	if parent.Valid() {
		p := &t.nodes[parent]
		p.Children = append(p.Children, id)
	} else if !t.Root.Valid() {
		t.Root = id
	}
	return id
}

// Node returns the node for id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if !id.Valid() || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Len reports the number of nodes excluding the sentinel.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) Kind(id NodeID) Kind {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return KindInvalid
}

func (t *Tree) Parent(id NodeID) NodeID {
	if n := t.Node(id); n != nil {
		return n.Parent
	}
	return NoNode
}

func (t *Tree) Children(id NodeID) []NodeID {
	if n := t.Node(id); n != nil {
		return n.Children
	}
	return nil
}

// Child returns the first child of id playing role f.
func (t *Tree) Child(id NodeID, f Field) NodeID {
	for _, c := range t.Children(id) {
		if t.nodes[c].Field == f {
			return c
		}
	}
	return NoNode
}

// ChildrenOf returns all children of id playing role f, in order.
func (t *Tree) ChildrenOf(id NodeID, f Field) []NodeID {
	var out []NodeID
	for _, c := range t.Children(id) {
		if t.nodes[c].Field == f {
			out = append(out, c)
		}
	}
	return out
}

// IsAncestor reports whether anc is a strict ancestor of id.
func (t *Tree) IsAncestor(anc, id NodeID) bool {
	for p := t.Parent(id); p.Valid(); p = t.Parent(p) {
		if p == anc {
			return true
		}
	}
	return false
}

// Enclosing returns the nearest strict ancestor of id whose kind is in ks.
func (t *Tree) Enclosing(id NodeID, ks KindSet) NodeID {
	for p := t.Parent(id); p.Valid(); p = t.Parent(p) {
		if ks.Has(t.nodes[p].Kind) {
			return p
		}
	}
	return NoNode
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the children of the current node.
func (t *Tree) Walk(id NodeID, fn func(NodeID) bool) {
	n := t.Node(id)
	if n == nil {
		return
	}
	if !fn(id) {
		return
	}
	for _, c := range n.Children {
		t.Walk(c, fn)
	}
}

// WalkScope is Walk restricted to the binding region of id: nested
// functions, lambdas and classes are not entered.
func (t *Tree) WalkScope(id NodeID, fn func(NodeID) bool) {
	t.Walk(id, func(c NodeID) bool {
		if c != id {
			switch t.nodes[c].Kind {
			case KindFunction, KindLambda, KindClass:
				return false
			}
		}
		return fn(c)
	})
}
