package rule_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/anycop/internal/analyze"
	"github.com/phobologic/anycop/internal/fix"
	"github.com/phobologic/anycop/internal/lang"
	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/rule"
	"github.com/phobologic/anycop/internal/syntax"
)

func newAnalyzer(t *testing.T) *analyze.Analyzer {
	t.Helper()
	a, err := analyze.New(lang.Languages["ruby"])
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// parseTree converts a full Ruby parse of source.
func parseTree(t *testing.T, source string) *syntax.Node {
	t.Helper()
	parser := lang.Languages["ruby"].NewParser()
	defer parser.Close()
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(source))
	require.NoError(t, err)
	defer tree.Close()
	root, err := syntax.FromTreeSitter(tree.RootNode(), []byte(source))
	require.NoError(t, err)
	return root
}

func contains(root, d *syntax.Node) bool {
	found := false
	syntax.Walk(root, func(n *syntax.Node) bool {
		if n == d {
			found = true
		}
		return !found
	})
	return found
}

func inspect(t *testing.T, source string) []model.Offense {
	t.Helper()
	offenses, err := newAnalyzer(t).Source(context.Background(), []byte(source), "test.rb")
	require.NoError(t, err)
	return offenses
}

func correct(t *testing.T, source string) string {
	t.Helper()
	out, _ := fix.Apply([]byte(source), edits(inspect(t, source)))
	return string(out)
}

func edits(offenses []model.Offense) []model.Edit {
	var out []model.Edit
	for _, o := range offenses {
		if o.Edit != nil {
			out = append(out, *o.Edit)
		}
	}
	return out
}

func TestRegistersOffenseForNegatedEmpty(t *testing.T) {
	t.Parallel()

	src := "!array.empty?\n"
	offenses := inspect(t, src)
	require.Len(t, offenses, 1)

	o := offenses[0]
	assert.Equal(t, rule.Name, o.Rule)
	assert.Equal(t, "Use .any? and remove the negation part.", o.Message)
	assert.Equal(t, model.Convention, o.Severity)
	assert.Equal(t, "!array.empty?", o.Source)
	assert.Equal(t, 0, o.Span.Start.Offset)
	assert.Equal(t, len("!array.empty?"), o.Span.End.Offset)
	assert.Equal(t, 1, o.Span.Start.Line)
	assert.Equal(t, 1, o.Span.Start.Column)
	require.True(t, o.Correctable())
	assert.Equal(t, "array.any?", o.Edit.Text)
	assert.Equal(t, o.Span, o.Edit.Span)
}

func TestNoOffenseForAnyOrPlainEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, inspect(t, "array.any?\narray.empty?\n"))
}

func TestCorrectsNegatedEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "array.any?\n", correct(t, "!array.empty?\n"))
}

func TestCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		want    int
		correct string
	}{
		{"parenthesized", "!(a.b.empty?)\n", 1, "a.b.any?\n"},
		{"double parens", "!((a.empty?))\n", 1, "a.any?\n"},
		{"keyword not", "not array.empty?\n", 1, "array.any?\n"},
		{"chained receiver", "!a.b.c.empty?\n", 1, "a.b.c.any?\n"},
		{"call receiver with args", "!foo(1, 2).empty?\n", 1, "foo(1, 2).any?\n"},
		{"index receiver", "!h[:k].empty?\n", 1, "h[:k].any?\n"},
		{"literal receiver", "![1, 2].empty?\n", 1, "[1, 2].any?\n"},
		{"parenthesized receiver", "!(a + b).empty?\n", 1, "(a + b).any?\n"},
		{"empty parens", "!array.empty?()\n", 1, "array.any?\n"},
		{"in condition", "if !items.empty?\n  go\nend\n", 1, "if items.any?\n  go\nend\n"},
		{"in boolean", "ok = !a.empty? && b\n", 1, "ok = a.any? && b\n"},
		{"receiver has any", "!a.any?.empty?\n", 1, "a.any?.any?\n"},
		{"double negation", "!!a.empty?\n", 1, "!a.any?\n"},
		{"two offenses", "x = !a.empty?\ny = !b.empty?\n", 2, "x = a.any?\ny = b.any?\n"},
		{"with arguments", "!a.empty?(x)\n", 0, "!a.empty?(x)\n"},
		{"with block", "!a.empty? { |x| x }\n", 0, "!a.empty? { |x| x }\n"},
		{"safe navigation", "!a&.empty?\n", 0, "!a&.empty?\n"},
		{"no receiver", "!empty?\n", 0, "!empty?\n"},
		{"other predicate", "!a.nil?\n", 0, "!a.nil?\n"},
		{"unary minus", "-a.size\n", 0, "-a.size\n"},
		{"multi statement parens", "!(x; a.empty?)\n", 0, "!(x; a.empty?)\n"},
		{"defined", "defined?(a.empty?)\n", 0, "defined?(a.empty?)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, inspect(t, tt.src), tt.want)
			assert.Equal(t, tt.correct, correct(t, tt.src))
		})
	}
}

func TestReceiverPreservedVerbatim(t *testing.T) {
	t.Parallel()

	src := "!a.\n  b(  1,2 ).\n  c.empty?\n"
	offenses := inspect(t, src)
	require.Len(t, offenses, 1)
	assert.Equal(t, "a.\n  b(  1,2 ).\n  c.any?", offenses[0].Edit.Text)
	assert.Equal(t, "a.\n  b(  1,2 ).\n  c.any?\n", correct(t, src))
}

func TestCorrectionIsIdempotent(t *testing.T) {
	t.Parallel()

	sources := []string{
		"!array.empty?\n",
		"!(a.b.empty?)\n",
		"puts 1 if !x.y(z).empty?\n",
		"not list.empty?\n",
	}
	for _, src := range sources {
		fixed := correct(t, src)
		assert.Empty(t, inspect(t, fixed), "re-analysing %q", fixed)
	}
}

func TestCorrectReplacesParenthesesWholesale(t *testing.T) {
	t.Parallel()

	// The edit spans the negation including its parentheses, so anything
	// inside them other than the receiver is dropped.
	src := "!(\n  # c\n  a.empty?\n)\n"
	offenses := inspect(t, src)
	require.Len(t, offenses, 1)
	assert.Equal(t, "a.any?", offenses[0].Edit.Text)
	assert.Equal(t, "a.any?\n", correct(t, src))
}

func TestQueryDispatchMatchesFullWalk(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"def ready?(jobs)",
		"  return false if !jobs.empty? && !(jobs.first.empty?)",
		"  not jobs.last.empty?",
		"end",
		"-x",
		"!y.nil?",
	}, "\n")

	a := newAnalyzer(t)
	root := parseTree(t, src)

	viaQuery, err := a.Source(context.Background(), []byte(src), "test.rb")
	require.NoError(t, err)

	viaWalk := rule.Inspect(root, "test.rb")
	require.Len(t, viaWalk, 3)
	require.Len(t, viaQuery, len(viaWalk))
	for i := range viaWalk {
		assert.Equal(t, viaWalk[i].Span, viaQuery[i].Span)
		assert.Equal(t, viaWalk[i].Edit.Text, viaQuery[i].Edit.Text)
	}
}

func TestMatchOnHandBuiltNodes(t *testing.T) {
	t.Parallel()

	recv := &syntax.Node{Kind: syntax.KindOther, Type: "identifier", Text: "a"}
	call := func(name string, args ...*syntax.Node) *syntax.Node {
		return &syntax.Node{Kind: syntax.KindCall, Name: name, CallOperator: ".", Receiver: recv, Args: args, Text: "a." + name}
	}
	neg := func(operand *syntax.Node) *syntax.Node {
		return &syntax.Node{Kind: syntax.KindNegation, Name: "!", Operand: operand, Text: "!" + operand.Text}
	}

	t.Run("match", func(t *testing.T) {
		t.Parallel()
		n := neg(call("empty?"))
		got, ok := rule.Match(n)
		require.True(t, ok)
		assert.Same(t, recv, got)
		assert.NotSame(t, n, got)
		assert.True(t, contains(n, got))
	})

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		n := neg(call("empty?"))
		first, ok1 := rule.Match(n)
		second, ok2 := rule.Match(n)
		assert.Equal(t, ok1, ok2)
		assert.Same(t, first, second)
	})

	t.Run("arguments", func(t *testing.T) {
		t.Parallel()
		_, ok := rule.Match(neg(call("empty?", &syntax.Node{Kind: syntax.KindOther, Text: "x"})))
		assert.False(t, ok)
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()
		_, ok := rule.Match(neg(call("any?")))
		assert.False(t, ok)
	})

	t.Run("not a negation", func(t *testing.T) {
		t.Parallel()
		_, ok := rule.Match(call("empty?"))
		assert.False(t, ok)
	})

	t.Run("nil", func(t *testing.T) {
		t.Parallel()
		_, ok := rule.Match(nil)
		assert.False(t, ok)
	})

	t.Run("correct", func(t *testing.T) {
		t.Parallel()
		n := neg(call("empty?"))
		n.Span = model.Span{Start: model.Position{Offset: 3}, End: model.Position{Offset: 12}}
		e := rule.Correct(n, recv)
		assert.Equal(t, n.Span, e.Span)
		assert.Equal(t, "a.any?", e.Text)
	})
}
