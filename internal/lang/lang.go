// Package lang provides a language registry mapping file names to
// tree-sitter languages and their embedded candidate queries.
package lang

import (
	"embed"
	"fmt"
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	// Filenames lists extensionless files that belong to the language.
	Filenames []string
	lang      *sitter.Language
	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// GetNegationQuery returns the compiled candidate query (safe to share across goroutines).
func (l *Language) GetNegationQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.Name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.lang)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling query: %w", err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap and filenameMap are built lazily after all init() functions have run.
var (
	extensionMap  map[string]string
	filenameMap   map[string]string
	extensionOnce sync.Once
)

func buildMaps() {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		filenameMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
			for _, name := range l.Filenames {
				filenameMap[name] = l.Name
			}
		}
	})
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	buildMaps()
	return extensionMap[ext]
}

// ForPath returns the language name for a file path, matching well-known
// file names before extensions. Returns "" if unsupported.
func ForPath(path string) string {
	buildMaps()
	base := filepath.Base(path)
	if name, ok := filenameMap[base]; ok {
		return name
	}
	return extensionMap[filepath.Ext(base)]
}
