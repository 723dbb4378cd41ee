package lang

import (
	"github.com/smacker/go-tree-sitter/c"

	"github.com/phobologic/subcheck/internal/model"
)

func init() {
	// Headers default to C; C++ projects rarely use a bare .h and the
	// lexical scan treats both kinds the same way.
	Languages["c"] = &Language{
		Name:       "c",
		Kind:       model.C,
		Extensions: []string{".c", ".h"},
		Style:      true,
		lang:       c.GetLanguage(),
	}
}
