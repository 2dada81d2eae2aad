package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/csharp"
)

func RegisterCSharp(r *chunker.Registry) {
	r.Register("c_sharp", &chunker.LanguageSpec{
		Grammar: csharp.GetLanguage,
		SemanticKinds: []string{
			"method_declaration",
			"class_declaration",
			"interface_declaration",
			"struct_declaration",
			"enum_declaration",
			"namespace_declaration",
		},
	})
}
