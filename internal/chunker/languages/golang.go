package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *chunker.Registry) {
	r.Register("go", &chunker.LanguageSpec{
		Grammar: golang.GetLanguage,
		SemanticKinds: []string{
			"function_declaration",
			"method_declaration",
			"type_declaration",
		},
	})
}
