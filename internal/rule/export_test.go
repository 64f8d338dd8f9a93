package rule

import (
	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/syntax"
)

// Inspect walks the whole tree rooted at root and returns one offense per
// matching negation, in pre-order.
func Inspect(root *syntax.Node, file string) []model.Offense {
	var offenses []model.Offense
	syntax.Walk(root, func(n *syntax.Node) bool {
		if n.Kind != syntax.KindNegation {
			return true
		}
		if o, ok := Check(n, file); ok {
			offenses = append(offenses, o)
		}
		return true
	})
	return offenses
}
