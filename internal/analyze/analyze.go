// Package analyze runs rules over source files parsed with tree-sitter.
package analyze

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/anycop/internal/lang"
	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/rule"
	"github.com/phobologic/anycop/internal/syntax"
)

const negationCapture = "negation"

// Analyzer inspects source files of a single language.
// An Analyzer owns a parser and must not be shared between goroutines.
type Analyzer struct {
	parser *sitter.Parser
	query  *sitter.Query
}

// New creates an Analyzer for l. The compiled query is shared with other
// analyzers of the same language.
func New(l *lang.Language) (*Analyzer, error) {
	q, err := l.GetNegationQuery()
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", l.Name, err)
	}
	return &Analyzer{parser: l.NewParser(), query: q}, nil
}

// Close releases the underlying parser.
func (a *Analyzer) Close() {
	a.parser.Close()
}

// Source parses source and returns the offenses found in it, ordered by
// start offset. path is used only for Offense.File.
func (a *Analyzer) Source(ctx context.Context, source []byte, path string) ([]model.Offense, error) {
	if len(source) == 0 {
		return nil, nil
	}

	tree, err := a.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(a.query, tree.RootNode())

	var offenses []model.Offense

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		for _, c := range match.Captures {
			if a.query.CaptureNameForId(c.Index) != negationCapture {
				continue
			}
			if c.Node.IsMissing() {
				continue
			}
			node, err := syntax.FromTreeSitter(c.Node, source)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			// Only negations reach the rule; other unary operators are dropped here.
			if node.Kind != syntax.KindNegation {
				continue
			}
			if o, ok := rule.Check(node, path); ok {
				o.Line = lineAt(source, o.Span.Start.Offset)
				offenses = append(offenses, o)
			}
		}
	}

	sort.SliceStable(offenses, func(i, j int) bool {
		return offenses[i].Span.Start.Offset < offenses[j].Span.Start.Offset
	})

	return offenses, nil
}

// lineAt returns the line containing offset, without its terminator.
func lineAt(source []byte, offset int) string {
	start := bytes.LastIndexByte(source[:offset], '\n') + 1
	end := bytes.IndexByte(source[offset:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += offset
	}
	return strings.TrimSuffix(string(source[start:end]), "\r")
}
