// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of inspection results.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/anycop/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts inspection results into TOON format.
func Encode(results []model.FileResult) string {
	var parts []string

	sum := model.Summarize(results)
	parts = append(parts, fmt.Sprintf("inspected: %d", sum.Files))
	parts = append(parts, fmt.Sprintf("detected: %d", sum.Offenses))
	parts = append(parts, fmt.Sprintf("corrected: %d", sum.Corrected))

	var fileRows [][]string
	for i := range results {
		r := &results[i]
		if len(r.Offenses) == 0 {
			continue
		}
		fileRows = append(fileRows, []string{
			r.Path,
			fmt.Sprintf("%d", len(r.Offenses)),
		})
	}
	parts = append(parts, formatTabular("files", []string{"path", "offenses"}, fileRows))

	var offenseRows [][]string
	for i := range results {
		r := &results[i]
		for j := range r.Offenses {
			o := &r.Offenses[j]
			correction := ""
			if o.Edit != nil {
				correction = o.Edit.Text
			}
			offenseRows = append(offenseRows, []string{
				r.Path,
				fmt.Sprintf("%d", o.Span.Start.Line),
				fmt.Sprintf("%d", o.Span.Start.Column),
				o.Rule,
				o.Source,
				correction,
				fmt.Sprintf("%t", o.Corrected),
			})
		}
	}
	parts = append(parts, formatTabular("offenses",
		[]string{"file", "line", "column", "rule", "source", "correction", "corrected"}, offenseRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[value]; ok {
		// Literal booleans are emitted bare; only strings spelled like
		// keywords in another case need quoting.
		return value
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
