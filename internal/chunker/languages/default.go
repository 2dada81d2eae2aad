package languages

import (
	"sync"

	"coderag/internal/chunker"
)

// Default returns the process-wide registry holding every supported
// language. It is built on first call and shared afterwards.
var Default = sync.OnceValue(func() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterAll(r)
	return r
})

// RegisterAll adds every supported language to r.
func RegisterAll(r *chunker.Registry) {
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterCSharp(r)
	RegisterRust(r)
}
