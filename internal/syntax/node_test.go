package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// !(recv.empty?)
func sampleTree() (root, recv *Node) {
	recv = &Node{Kind: KindOther, Type: "identifier", Text: "recv"}
	call := &Node{Kind: KindCall, Type: "call", Name: "empty?", CallOperator: ".", Receiver: recv, Text: "recv.empty?"}
	parens := &Node{Kind: KindParens, Type: "parenthesized_statements", Elems: []*Node{call}, Text: "(recv.empty?)"}
	root = &Node{Kind: KindNegation, Type: "unary", Name: "!", Operand: parens, Text: "!(recv.empty?)"}
	return root, recv
}

func TestKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "other", KindOther.String())
	assert.Equal(t, "call", KindCall.String())
	assert.Equal(t, "negation", KindNegation.String())
	assert.Equal(t, "parens", KindParens.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestChildren(t *testing.T) {
	t.Parallel()

	arg := &Node{Kind: KindOther}
	block := &Node{Kind: KindOther}
	recv := &Node{Kind: KindOther}
	call := &Node{Kind: KindCall, Receiver: recv, Args: []*Node{arg}, Block: block}
	assert.Equal(t, []*Node{recv, arg, block}, call.Children())

	selfCall := &Node{Kind: KindCall}
	assert.Empty(t, selfCall.Children())

	neg := &Node{Kind: KindNegation, Operand: call}
	assert.Equal(t, []*Node{call}, neg.Children())
	assert.Empty(t, (&Node{Kind: KindNegation}).Children())

	var nilNode *Node
	assert.Nil(t, nilNode.Children())
}

func TestUnparen(t *testing.T) {
	t.Parallel()

	inner := &Node{Kind: KindCall, Name: "empty?"}
	double := &Node{Kind: KindParens, Elems: []*Node{{Kind: KindParens, Elems: []*Node{inner}}}}
	assert.Same(t, inner, double.Unparen())

	multi := &Node{Kind: KindParens, Elems: []*Node{inner, inner}}
	assert.Same(t, multi, multi.Unparen())

	empty := &Node{Kind: KindParens}
	assert.Same(t, empty, empty.Unparen())

	assert.Same(t, inner, inner.Unparen())
}

func TestWalk(t *testing.T) {
	t.Parallel()
	root, _ := sampleTree()

	var kinds []Kind
	Walk(root, func(n *Node) bool {
		kinds = append(kinds, n.Kind)
		return true
	})
	assert.Equal(t, []Kind{KindNegation, KindParens, KindCall, KindOther}, kinds)

	kinds = nil
	Walk(root, func(n *Node) bool {
		kinds = append(kinds, n.Kind)
		return n.Kind != KindParens
	})
	assert.Equal(t, []Kind{KindNegation, KindParens}, kinds)
}
