// Package model defines core data structures for anycop.
package model

// Position is a location in a source file. Offset is a byte offset,
// Line and Column are 1-based.
type Position struct {
	Offset int
	Line   int
	Column int
}

// Span is a half-open byte range [Start.Offset, End.Offset) of a source file.
type Span struct {
	Start Position
	End   Position
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Offset < o.End.Offset && o.Start.Offset < s.End.Offset
}

// Edit replaces the bytes covered by Span with Text.
type Edit struct {
	Span Span
	Text string
}

// Severity mirrors the one-letter severity codes used in linter output.
type Severity string

// Convention is the only severity anycop reports.
const Convention Severity = "C"

// Offense is a single rule violation found in a file.
type Offense struct {
	Rule      string
	Severity  Severity
	Message   string
	File      string
	Span      Span
	Source    string // verbatim text of the offending expression
	Line      string // full text of the line the offense starts on
	Edit      *Edit  // nil when the offense has no automatic correction
	Corrected bool
}

// Correctable reports whether the offense carries an automatic correction.
func (o Offense) Correctable() bool {
	return o.Edit != nil
}

// FileResult holds the outcome of inspecting a single file.
type FileResult struct {
	Path     string
	Offenses []Offense
	// Corrected is the rewritten source when autocorrect changed the file.
	Corrected []byte
}

// Summary aggregates counts across an entire run.
type Summary struct {
	Files     int
	Offenses  int
	Corrected int
}

// Summarize counts files and offenses across results.
func Summarize(results []FileResult) Summary {
	s := Summary{Files: len(results)}
	for i := range results {
		for _, o := range results[i].Offenses {
			s.Offenses++
			if o.Corrected {
				s.Corrected++
			}
		}
	}
	return s
}
