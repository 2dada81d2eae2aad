package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *chunker.Registry) {
	r.Register("python", &chunker.LanguageSpec{
		Grammar: python.GetLanguage,
		SemanticKinds: []string{
			"function_definition",
			"class_definition",
			"decorated_definition",
		},
	})
}
