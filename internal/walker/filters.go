package walker

import (
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the largest file the scanner emits (500 KB).
const DefaultMaxFileSize = 500 * 1024

// excludedDirs are skipped wherever they appear in the tree.
var excludedDirs = map[string]bool{
	".git":          true,
	".svn":          true,
	".hg":           true,
	"node_modules":  true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	".tox":          true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".env":          true,
	"dist":          true,
	"build":         true,
	".next":         true,
	".nuxt":         true,
	"target":        true,
	"bin":           true,
	"obj":           true,
	".idea":         true,
	".vscode":       true,
	".vs":           true,
	"vendor":        true,
	"coverage":      true,
	".coverage":     true,
	"htmlcov":       true,
	".terraform":    true,
	".docker":       true,
}

// excludedFiles are lockfiles and OS droppings that never carry code.
var excludedFiles = map[string]bool{
	".DS_Store":         true,
	"Thumbs.db":         true,
	".gitkeep":          true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"poetry.lock":       true,
	"Cargo.lock":        true,
	"go.sum":            true,
	"composer.lock":     true,
	"Gemfile.lock":      true,
}

// excludedExts are binary, media and build-artifact extensions.
var excludedExts = map[string]bool{
	".pyc": true, ".pyo": true, ".so": true, ".dylib": true, ".dll": true,
	".exe": true, ".o": true, ".a": true, ".class": true, ".jar": true,
	".war": true, ".ear": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".svg": true, ".webp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true, ".flac": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".map": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
}

// ExcludedDir reports whether a directory name is always skipped.
func ExcludedDir(name string) bool {
	return excludedDirs[name]
}

// ExcludedFile reports whether a file name is skipped regardless of size.
func ExcludedFile(name string) bool {
	if excludedFiles[name] {
		return true
	}
	if strings.HasSuffix(name, ".min.js") || strings.HasSuffix(name, ".min.css") {
		return true
	}
	return excludedExts[strings.ToLower(filepath.Ext(name))]
}
