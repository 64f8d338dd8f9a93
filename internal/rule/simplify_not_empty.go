// Package rule implements Style/SimplifyNotEmptyWithAny.
//
// `array.any?` is a simplified way to say `!array.empty?`:
//
//	# bad
//	!array.empty?
//	not array.empty?
//	!(array.empty?)
//
//	# good
//	array.any?
//
// The rewrite assumes the receiver follows the usual collection contract
// for empty? and any?. That is not verified.
package rule

import (
	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/syntax"
)

const (
	// Name is the rule's qualified name as shown in reports.
	Name = "Style/SimplifyNotEmptyWithAny"
	// Message is reported for every offense.
	Message = "Use .any? and remove the negation part."

	emptyMethod = "empty?"
	anySuffix   = ".any?"
)

// Match reports whether n is the negation of a no-argument `empty?` call
// and, if so, returns that call's receiver. Parentheses wrapping a single
// expression between the negation and the call are ignored. The returned
// receiver is always a strict descendant of n.
func Match(n *syntax.Node) (*syntax.Node, bool) {
	if n == nil || n.Kind != syntax.KindNegation {
		return nil, false
	}

	call := n.Operand.Unparen()
	if call == nil || call.Kind != syntax.KindCall {
		return nil, false
	}
	if call.Name != emptyMethod || len(call.Args) != 0 || call.Block != nil {
		return nil, false
	}
	// Safe navigation (`x&.empty?`) may return nil, which any? cannot.
	if call.CallOperator != "." && call.CallOperator != "::" {
		return nil, false
	}
	if call.Receiver == nil {
		return nil, false
	}
	return call.Receiver, true
}

// Correct returns the edit replacing the whole matched node with the
// receiver's verbatim source followed by `.any?`.
func Correct(n, receiver *syntax.Node) model.Edit {
	return model.Edit{
		Span: n.Span,
		Text: receiver.Text + anySuffix,
	}
}

// Check runs Match on n and builds the offense for a match.
func Check(n *syntax.Node, file string) (model.Offense, bool) {
	receiver, ok := Match(n)
	if !ok {
		return model.Offense{}, false
	}
	edit := Correct(n, receiver)
	return model.Offense{
		Rule:     Name,
		Severity: model.Convention,
		Message:  Message,
		File:     file,
		Span:     n.Span,
		Source:   n.Text,
		Edit:     &edit,
	}, true
}
