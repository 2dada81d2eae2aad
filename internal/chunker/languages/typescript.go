package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// RegisterTypeScript registers .ts and .tsx sources; both parse with the
// plain TypeScript grammar.
func RegisterTypeScript(r *chunker.Registry) {
	kinds := append([]string{}, javascriptKinds...)
	kinds = append(kinds, "interface_declaration", "type_alias_declaration")
	r.Register("typescript", &chunker.LanguageSpec{
		Grammar:       typescript.GetLanguage,
		SemanticKinds: kinds,
	})
}
