package check

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/phobologic/subcheck/internal/model"
	"github.com/phobologic/subcheck/internal/rules"
)

var markdown = goldmark.New()

// section is one heading and the text of the blocks that follow it up to
// the next heading of any level.
type section struct {
	title string // lower-cased heading text
	line  int
	body  string
}

// Documentation validates the project's documentation file against docs.
// A missing file is a failure; every structural finding is a warning.
func Documentation(fsys afero.Fs, root string, docs rules.DocTemplate) []model.Violation {
	data, err := afero.ReadFile(fsys, filepath.Join(root, filepath.FromSlash(docs.File)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Violation{{
				Kind:     model.MissingFile,
				Severity: model.Fail,
				File:     docs.File,
				Message:  fmt.Sprintf("%s is missing from the project folder", docs.File),
			}}
		}
		return []model.Violation{{
			Kind:     model.Unreadable,
			Severity: model.Fail,
			File:     docs.File,
			Message:  fmt.Sprintf("cannot read %s: %v", docs.File, err),
		}}
	}

	var out []model.Violation
	warn := func(kind model.ViolationKind, line int, format string, args ...any) {
		out = append(out, model.Violation{
			Kind:     kind,
			Severity: model.Warn,
			File:     docs.File,
			Line:     line,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	_, line := firstNonEmptyLine(data)
	switch {
	case line == 0:
		warn(model.DocStructure, 0, "%s appears to be empty", docs.File)
	case !FirstLineConforms(data, docs.FirstLineKeywords):
		warn(model.DocStructure, line,
			"first non-empty line should be italicized and follow the template (keywords: %s)",
			strings.Join(docs.FirstLineKeywords, ", "))
	}

	sections := parseSections(data)
	for _, want := range missingSections(sections, docs.Sections) {
		warn(model.DocStructure, 0, "missing a '%s' section", want)
	}

	if docs.DisclosureSection != "" && len(docs.DisclosureKeywords) > 0 {
		if s := findSection(sections, docs.DisclosureSection); s != nil && !containsAny(s.body, docs.DisclosureKeywords) {
			warn(model.DocDisclosure, s.line,
				"%s section does not mention AI usage (expected one of: %s)",
				docs.DisclosureSection, strings.Join(docs.DisclosureKeywords, ", "))
		}
	}
	return out
}

// FirstLineConforms reports whether the first non-empty line of src is
// emphasized and carries every keyword as a whole word.
func FirstLineConforms(src []byte, keywords []string) bool {
	first, line := firstNonEmptyLine(src)
	return line > 0 && emphasized(first) && containsAll(first, keywords)
}

// MissingSections returns the entries of want that have no heading in src.
func MissingSections(src []byte, want []string) []string {
	return missingSections(parseSections(src), want)
}

func missingSections(sections []section, want []string) []string {
	var out []string
	for _, w := range want {
		if findSection(sections, w) == nil {
			out = append(out, w)
		}
	}
	return out
}

func firstNonEmptyLine(data []byte) (string, int) {
	for i, l := range strings.Split(string(data), "\n") {
		if s := strings.TrimSpace(l); s != "" {
			return s, i + 1
		}
	}
	return "", 0
}

func emphasized(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '*' && s[len(s)-1] == '*') || (s[0] == '_' && s[len(s)-1] == '_')
}

func wordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

func containsAll(s string, keywords []string) bool {
	for _, kw := range keywords {
		if !wordPattern(kw).MatchString(s) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if wordPattern(kw).MatchString(s) {
			return true
		}
	}
	return false
}

// findSection returns the first section whose heading starts with name as a
// whole word, ignoring case.
func findSection(sections []section, name string) *section {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(strings.ToLower(name)) + `\b`)
	for i := range sections {
		if re.MatchString(sections[i].title) {
			return &sections[i]
		}
	}
	return nil
}

func parseSections(src []byte) []section {
	doc := markdown.Parser().Parse(text.NewReader(src))

	var sections []section
	var body bytes.Buffer
	flush := func() {
		if len(sections) > 0 {
			sections[len(sections)-1].body = body.String()
		}
		body.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			sections = append(sections, section{
				title: strings.ToLower(strings.TrimSpace(inlineText(h, src))),
				line:  blockLine(h, src),
			})
			continue
		}
		body.WriteString(inlineText(n, src))
		body.WriteByte('\n')
	}
	flush()
	return sections
}

// inlineText concatenates the visible text below n.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func blockLine(n ast.Node, src []byte) int {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return 0
	}
	return bytes.Count(src[:lines.At(0).Start], []byte("\n")) + 1
}
