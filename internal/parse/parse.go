// Package parse collects the functions and function-like macros a source
// file defines, using tree-sitter. Prototypes are not definitions.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// DefinitionKind is the syntactic kind of a project definition.
type DefinitionKind string

const (
	Function DefinitionKind = "function"
	Method   DefinitionKind = "method"
	Macro    DefinitionKind = "macro"
)

var captureMap = map[string]DefinitionKind{
	"definition.function": Function,
	"definition.macro":    Macro,
}

// maxDeclaratorDepth bounds the walk down nested declarators.
const maxDeclaratorDepth = 32

// Definition is a function with a body, or a function-like macro.
type Definition struct {
	Name string
	Kind DefinitionKind
	Line int
}

// ExtractDefinitions parses source and returns every definition matched by
// query. The parser must be created for the query's language. Syntax errors
// are tolerated: tree-sitter still yields the well-formed parts of the file.
func ExtractDefinitions(ctx context.Context, parser *sitter.Parser, query *sitter.Query, source []byte) []Definition {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var defs []Definition
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode *sitter.Node
		var kind DefinitionKind
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else if k, ok := captureMap[cname]; ok {
				kind = k
			}
		}
		if nameNode == nil || kind == "" {
			continue
		}
		if kind == Function {
			var ok bool
			if nameNode, kind, ok = declaratorName(nameNode); !ok {
				continue
			}
		}

		defs = append(defs, Definition{
			Name: nodeText(nameNode, source),
			Kind: kind,
			Line: int(nameNode.StartPoint().Row) + 1,
		})
	}
	return defs
}

// Names returns the set of definition names.
func Names(defs []Definition) map[string]struct{} {
	set := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		set[d.Name] = struct{}{}
	}
	return set
}

// declaratorName walks from the declarator of a function definition down to
// the defined name, through pointer, reference and parenthesized declarators.
// Qualified (Class::name) and field names are methods. ok is false when no
// function declarator is found on the way.
func declaratorName(n *sitter.Node) (name *sitter.Node, kind DefinitionKind, ok bool) {
	kind = Function
	seenFunc := false
	for depth := 0; n != nil && depth < maxDeclaratorDepth; depth++ {
		switch n.Type() {
		case "identifier", "operator_name", "destructor_name":
			return n, kind, seenFunc
		case "field_identifier":
			return n, Method, seenFunc
		case "qualified_identifier":
			kind = Method
			n = n.ChildByFieldName("name")
			continue
		case "template_function":
			n = n.ChildByFieldName("name")
			continue
		case "function_declarator":
			seenFunc = true
		}
		if inner := n.ChildByFieldName("declarator"); inner != nil {
			n = inner
			continue
		}
		// reference_declarator and parenthesized_declarator carry their
		// inner declarator as an unnamed field.
		count := int(n.NamedChildCount())
		if count == 0 {
			break
		}
		n = n.NamedChild(count - 1)
	}
	return nil, "", false
}

func nodeText(node *sitter.Node, source []byte) string {
	return strings.TrimSpace(string(source[node.StartByte():node.EndByte()]))
}
