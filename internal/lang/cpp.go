package lang

import (
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/phobologic/subcheck/internal/model"
)

func init() {
	Languages["cpp"] = &Language{
		Name:       "cpp",
		Kind:       model.CPP,
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".tpp", ".ipp"},
		lang:       cpp.GetLanguage(),
	}
}
