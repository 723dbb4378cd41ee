// Package lang provides a language registry mapping file extensions to
// source kinds, tree-sitter grammars and their embedded definition queries.
package lang

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/subcheck/internal/model"
)

//go:embed queries/*.scm
var queryFS embed.FS

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Kind       model.Kind
	Extensions []string

	// Style reports whether files of this language go through the
	// external style checker.
	Style bool

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

// GetDefinitionQuery returns the compiled definition query (safe to share
// across goroutines).
func (l *Language) GetDefinitionQuery() (*sitter.Query, error) {
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

var (
	extensionMap  map[string]*Language
	extensionOnce sync.Once
)

func getExtensionMap() map[string]*Language {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]*Language)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language for a file extension, or nil if
// unsupported. Matching is case-insensitive.
func ForExtension(ext string) *Language {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForKind returns the language registered for a source kind, or nil.
func ForKind(kind model.Kind) *Language {
	for _, l := range Languages {
		if l.Kind == kind {
			return l
		}
	}
	return nil
}
