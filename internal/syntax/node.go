// Package syntax defines the read-only expression tree that rules inspect.
//
// Nodes are a tagged union: Kind selects which of the fields are meaningful.
// Trees are built from tree-sitter parses by FromTreeSitter and are never
// mutated afterwards.
package syntax

import "github.com/phobologic/anycop/internal/model"

// Kind tags the variant held by a Node.
type Kind uint8

const (
	// KindOther is any expression the rules do not inspect structurally.
	KindOther Kind = iota
	// KindCall is a method call: receiver, method name, arguments.
	KindCall
	// KindNegation is a logical negation, `!x` or `not x`.
	KindNegation
	// KindParens is a parenthesised statement list, `( ... )`.
	KindParens
)

func (k Kind) String() string {
	switch k {
	case KindOther:
		return "other"
	case KindCall:
		return "call"
	case KindNegation:
		return "negation"
	case KindParens:
		return "parens"
	}
	return "unknown"
}

// Node is a single expression in a parsed source file.
//
// Field use by kind:
//
//	KindCall:     Name (method), CallOperator, Receiver (nil for self calls), Args, Block
//	KindNegation: Name (operator, "!" or "not"), Operand
//	KindParens:   Elems (statements)
//	KindOther:    Elems (named children)
type Node struct {
	Kind Kind
	// Type is the grammar node type the node was built from.
	Type string
	Span model.Span
	// Text is the verbatim source covered by Span.
	Text string

	Name         string
	CallOperator string
	Receiver     *Node
	Args         []*Node
	Block        *Node
	Operand      *Node
	Elems        []*Node
}

// Children returns the node's direct children in source order.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindCall:
		var out []*Node
		if n.Receiver != nil {
			out = append(out, n.Receiver)
		}
		out = append(out, n.Args...)
		if n.Block != nil {
			out = append(out, n.Block)
		}
		return out
	case KindNegation:
		if n.Operand == nil {
			return nil
		}
		return []*Node{n.Operand}
	case KindParens, KindOther:
		return n.Elems
	}
	return nil
}

// Unparen strips parentheses that wrap exactly one expression, at any depth.
func (n *Node) Unparen() *Node {
	for n != nil && n.Kind == KindParens && len(n.Elems) == 1 {
		n = n.Elems[0]
	}
	return n
}

// Walk visits n and its descendants in pre-order. If fn returns false the
// children of that node are skipped.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
