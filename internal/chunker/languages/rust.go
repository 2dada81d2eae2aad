package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/rust"
)

func RegisterRust(r *chunker.Registry) {
	r.Register("rust", &chunker.LanguageSpec{
		Grammar: rust.GetLanguage,
		SemanticKinds: []string{
			"function_item",
			"impl_item",
			"struct_item",
			"enum_item",
			"trait_item",
			"mod_item",
		},
	})
}
