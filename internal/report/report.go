// Package report renders inspection results for humans and tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/phobologic/anycop/internal/model"
	"github.com/phobologic/anycop/internal/toon"
)

// Format names accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatTOON = "toon"
)

const tabWidth = 8

// Formats lists the supported output formats.
var Formats = []string{FormatText, FormatJSON, FormatTOON}

// Options controls rendering.
type Options struct {
	Format  string
	Color   bool
	Version string
}

// Write renders results to w in the requested format.
func Write(w io.Writer, results []model.FileResult, opts Options) error {
	switch opts.Format {
	case "", FormatText:
		return writeText(w, results, opts.Color)
	case FormatJSON:
		return writeJSON(w, results, opts.Version)
	case FormatTOON:
		_, err := fmt.Fprintln(w, toon.Encode(results))
		return err
	}
	return fmt.Errorf("unknown format %q (want one of %s)", opts.Format, strings.Join(Formats, ", "))
}

type styles struct {
	file, pos, severity, tag, rule, caret *color.Color
}

func newStyles(enabled bool) styles {
	s := styles{
		file:     color.New(color.FgCyan),
		pos:      color.New(color.Reset),
		severity: color.New(color.FgYellow, color.Bold),
		tag:      color.New(color.FgYellow),
		rule:     color.New(color.Bold),
		caret:    color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{s.file, s.pos, s.severity, s.tag, s.rule, s.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func writeText(w io.Writer, results []model.FileResult, colorize bool) error {
	st := newStyles(colorize)
	var b strings.Builder

	for i := range results {
		r := &results[i]
		for j := range r.Offenses {
			formatOffense(&b, st, r.Path, &r.Offenses[j])
		}
	}

	sum := model.Summarize(results)
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(summaryLine(sum))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func formatOffense(b *strings.Builder, st styles, path string, o *model.Offense) {
	b.WriteString(st.file.Sprint(path))
	b.WriteString(st.pos.Sprintf(":%d:%d: ", o.Span.Start.Line, o.Span.Start.Column))
	b.WriteString(st.severity.Sprint(string(o.Severity)))
	b.WriteString(": ")
	switch {
	case o.Corrected:
		b.WriteString(st.tag.Sprint("[Corrected] "))
	case o.Correctable():
		b.WriteString(st.tag.Sprint("[Correctable] "))
	}
	b.WriteString(st.rule.Sprint(o.Rule))
	b.WriteString(": ")
	b.WriteString(o.Message)
	b.WriteString("\n")

	if o.Line == "" {
		return
	}
	line := expandTabs(o.Line)
	b.WriteString(line)
	b.WriteString("\n")

	col := visualColumn(o.Line, o.Span.Start.Column)
	width := underlineWidth(o)
	if rest := len(line) - col; width > rest && rest > 0 {
		width = rest
	}
	if width < 1 {
		width = 1
	}
	b.WriteString(strings.Repeat(" ", col))
	b.WriteString(st.caret.Sprint(strings.Repeat("^", width)))
	b.WriteString("\n")
}

// underlineWidth is the width of the offense on its first line.
func underlineWidth(o *model.Offense) int {
	src := o.Source
	if i := strings.IndexByte(src, '\n'); i >= 0 {
		src = src[:i]
	}
	return len(expandTabs(src))
}

func summaryLine(s model.Summary) string {
	parts := []string{
		plural(s.Files, "file") + " inspected",
		plural(s.Offenses, "offense") + " detected",
	}
	if s.Corrected > 0 {
		parts = append(parts, plural(s.Corrected, "offense")+" corrected")
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	if n == 0 {
		return fmt.Sprintf("no %ss", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func expandTabs(line string) string {
	var expanded strings.Builder
	col := 0
	for _, ch := range line {
		if ch == '\t' {
			spaces := tabWidth - (col % tabWidth)
			expanded.WriteString(strings.Repeat(" ", spaces))
			col += spaces
			continue
		}
		expanded.WriteRune(ch)
		col++
	}
	return expanded.String()
}

// visualColumn converts a 1-based byte column into a 0-based display column.
func visualColumn(line string, column int) int {
	visual := 0
	for i, ch := range line {
		if i+1 >= column {
			break
		}
		if ch == '\t' {
			visual += tabWidth - (visual % tabWidth)
		} else {
			visual++
		}
	}
	return visual
}

type jsonLocation struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	LastLine    int `json:"last_line"`
	LastColumn  int `json:"last_column"`
	Length      int `json:"length"`
}

type jsonOffense struct {
	Severity    string       `json:"severity"`
	Message     string       `json:"message"`
	CopName     string       `json:"cop_name"`
	Corrected   bool         `json:"corrected"`
	Correctable bool         `json:"correctable"`
	Correction  string       `json:"correction,omitempty"`
	Location    jsonLocation `json:"location"`
}

type jsonFile struct {
	Path     string        `json:"path"`
	Offenses []jsonOffense `json:"offenses"`
}

type jsonSummary struct {
	OffenseCount       int `json:"offense_count"`
	InspectedFileCount int `json:"inspected_file_count"`
	CorrectedCount     int `json:"corrected_count"`
}

type jsonReport struct {
	Metadata struct {
		Version string `json:"version"`
	} `json:"metadata"`
	Files   []jsonFile  `json:"files"`
	Summary jsonSummary `json:"summary"`
}

var severityNames = map[model.Severity]string{
	model.Convention: "convention",
}

func writeJSON(w io.Writer, results []model.FileResult, version string) error {
	var rep jsonReport
	rep.Metadata.Version = version
	rep.Files = make([]jsonFile, 0, len(results))

	for i := range results {
		r := &results[i]
		f := jsonFile{Path: r.Path, Offenses: make([]jsonOffense, 0, len(r.Offenses))}
		for _, o := range r.Offenses {
			jo := jsonOffense{
				Severity:    severityNames[o.Severity],
				Message:     o.Message,
				CopName:     o.Rule,
				Corrected:   o.Corrected,
				Correctable: o.Correctable(),
				Location: jsonLocation{
					StartLine:   o.Span.Start.Line,
					StartColumn: o.Span.Start.Column,
					LastLine:    o.Span.End.Line,
					// End is exclusive; last_column names the final character.
					LastColumn: o.Span.End.Column - 1,
					Length:     o.Span.Len(),
				},
			}
			if o.Edit != nil {
				jo.Correction = o.Edit.Text
			}
			f.Offenses = append(f.Offenses, jo)
		}
		rep.Files = append(rep.Files, f)
	}

	sum := model.Summarize(results)
	rep.Summary = jsonSummary{
		OffenseCount:       sum.Offenses,
		InspectedFileCount: sum.Files,
		CorrectedCount:     sum.Corrected,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
