package chunker

import (
	"path/filepath"
	"strings"
)

// Strategy is how a file gets chunked.
type Strategy int

const (
	// StrategyFallback splits the whole file with SplitLines.
	StrategyFallback Strategy = iota
	// StrategySemantic parses the file and chunks at unit boundaries.
	StrategySemantic
)

func (s Strategy) String() string {
	if s == StrategySemantic {
		return "semantic"
	}
	return "fallback"
}

// LanguageUnknown is returned by DetectLanguage for unrecognized files.
const LanguageUnknown = "unknown"

var extensionLanguages = map[string]string{
	".py":         "python",
	".pyi":        "python",
	".js":         "javascript",
	".jsx":        "javascript",
	".ts":         "typescript",
	".tsx":        "typescript",
	".go":         "go",
	".cs":         "c_sharp",
	".rs":         "rust",
	".java":       "java",
	".rb":         "ruby",
	".php":        "php",
	".swift":      "swift",
	".kt":         "kotlin",
	".scala":      "scala",
	".c":          "c",
	".cpp":        "cpp",
	".h":          "c",
	".hpp":        "cpp",
	".lua":        "lua",
	".r":          "r",
	".sh":         "bash",
	".bash":       "bash",
	".zsh":        "bash",
	".sql":        "sql",
	".html":       "html",
	".css":        "css",
	".scss":       "scss",
	".yaml":       "yaml",
	".yml":        "yaml",
	".toml":       "toml",
	".json":       "json",
	".md":         "markdown",
	".rst":        "rst",
	".txt":        "text",
	".dockerfile": "dockerfile",
	".tf":         "terraform",
	".proto":      "protobuf",
	".graphql":    "graphql",
	".gql":        "graphql",
}

// DetectLanguage maps a file path to a language tag.
func DetectLanguage(path string) string {
	name := filepath.Base(path)
	if name == "Dockerfile" || strings.HasPrefix(name, "Dockerfile.") {
		return "dockerfile"
	}
	if name == "Makefile" || name == "GNUmakefile" {
		return "makefile"
	}
	if lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(name))]; ok {
		return lang
	}
	return LanguageUnknown
}

// Classify reports whether syntax-aware chunking is available for lang.
func (r *Registry) Classify(lang string) Strategy {
	if r.lookup(lang) != nil {
		return StrategySemantic
	}
	return StrategyFallback
}
