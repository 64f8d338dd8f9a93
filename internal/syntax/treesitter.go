package syntax

import (
	"fmt"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/anycop/internal/model"
)

// FromTreeSitter converts a tree-sitter Ruby subtree rooted at n into a Node.
// source must be the exact buffer the tree was parsed from.
func FromTreeSitter(n *sitter.Node, source []byte) (*Node, error) {
	if n == nil {
		return nil, nil
	}
	c := &converter{source: source}
	out := c.convert(n)
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

type converter struct {
	source []byte
	err    error
}

func (c *converter) convert(n *sitter.Node) *Node {
	if n == nil || c.err != nil {
		return nil
	}

	out := &Node{
		Kind: KindOther,
		Type: n.Type(),
		Span: c.span(n),
	}
	if c.err != nil {
		return nil
	}
	out.Text = string(c.source[out.Span.Start.Offset:out.Span.End.Offset])

	switch n.Type() {
	case "unary":
		op := n.ChildByFieldName("operator")
		if op != nil && (op.Type() == "!" || op.Type() == "not") {
			out.Kind = KindNegation
			out.Name = op.Type()
			out.Operand = c.convert(n.ChildByFieldName("operand"))
			return out
		}

	case "call":
		method := n.ChildByFieldName("method")
		if method == nil {
			// `foo.()` shorthand for #call; nothing to name.
			break
		}
		out.Kind = KindCall
		out.Name = c.text(method)
		if op := n.ChildByFieldName("operator"); op != nil {
			out.CallOperator = op.Type()
		}
		out.Receiver = c.convert(n.ChildByFieldName("receiver"))
		if args := n.ChildByFieldName("arguments"); args != nil {
			out.Args = c.namedChildren(args)
		}
		out.Block = c.convert(n.ChildByFieldName("block"))
		return out

	case "parenthesized_statements":
		out.Kind = KindParens
		out.Elems = c.namedChildren(n)
		return out
	}

	out.Elems = c.namedChildren(n)
	return out
}

// namedChildren converts the named children of n, skipping comments.
func (c *converter) namedChildren(n *sitter.Node) []*Node {
	count := int(n.NamedChildCount())
	if count == 0 {
		return nil
	}
	out := make([]*Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if conv := c.convert(child); conv != nil {
			out = append(out, conv)
		}
	}
	return out
}

func (c *converter) text(n *sitter.Node) string {
	span := c.span(n)
	if c.err != nil {
		return ""
	}
	return string(c.source[span.Start.Offset:span.End.Offset])
}

func (c *converter) span(n *sitter.Node) model.Span {
	start := c.position(n.StartByte(), n.StartPoint())
	end := c.position(n.EndByte(), n.EndPoint())
	if c.err == nil && (end.Offset > len(c.source) || start.Offset > end.Offset) {
		c.err = fmt.Errorf("node %s: range [%d,%d) outside source of %d bytes",
			n.Type(), start.Offset, end.Offset, len(c.source))
	}
	return model.Span{Start: start, End: end}
}

func (c *converter) position(offset uint32, p sitter.Point) model.Position {
	off := c.int(offset)
	row := c.int(p.Row)
	col := c.int(p.Column)
	return model.Position{Offset: off, Line: row + 1, Column: col + 1}
}

func (c *converter) int(v uint32) int {
	i, err := safecast.Conv[int](v)
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("converting offset %d: %w", v, err)
	}
	return i
}
