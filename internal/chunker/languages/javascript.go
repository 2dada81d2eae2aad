package languages

import (
	"coderag/internal/chunker"

	"github.com/smacker/go-tree-sitter/javascript"
)

var javascriptKinds = []string{
	"function_declaration",
	"class_declaration",
	"method_definition",
	"arrow_function",
	"export_statement",
}

func RegisterJavaScript(r *chunker.Registry) {
	r.Register("javascript", &chunker.LanguageSpec{
		Grammar:       javascript.GetLanguage,
		SemanticKinds: javascriptKinds,
	})
}
