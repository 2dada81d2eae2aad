package chunker

import (
	"sort"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec defines the tree-sitter grammar and the node kinds that count
// as semantic units for a language.
type LanguageSpec struct {
	// Grammar loads the tree-sitter language. It is called at most once per
	// registry, on first use.
	Grammar func() *sitter.Language
	// SemanticKinds lists node kinds emitted as standalone chunks.
	SemanticKinds []string
}

type registered struct {
	spec  *LanguageSpec
	kinds map[string]bool

	once sync.Once
	lang *sitter.Language
}

func (r *registered) grammar() *sitter.Language {
	r.once.Do(func() {
		if r.spec.Grammar != nil {
			r.lang = r.spec.Grammar()
		}
	})
	return r.lang
}

// Registry maps language tags to specs. It is safe for concurrent use;
// grammars are resolved lazily and cached for the life of the registry.
type Registry struct {
	mu    sync.RWMutex
	langs map[string]*registered
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{langs: make(map[string]*registered)}
}

// Register adds a language spec under the given tag.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	kinds := make(map[string]bool, len(spec.SemanticKinds))
	for _, k := range spec.SemanticKinds {
		kinds[k] = true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[name] = &registered{spec: spec, kinds: kinds}
}

func (r *Registry) lookup(lang string) *registered {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.langs[lang]
}

// Grammar returns the tree-sitter language for a tag, or nil.
func (r *Registry) Grammar(lang string) *sitter.Language {
	reg := r.lookup(lang)
	if reg == nil {
		return nil
	}
	return reg.grammar()
}

// SemanticKinds returns the semantic node-kind set for a tag.
func (r *Registry) SemanticKinds(lang string) map[string]bool {
	reg := r.lookup(lang)
	if reg == nil {
		return nil
	}
	return reg.kinds
}

// Languages returns the registered tags, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.langs))
	for name := range r.langs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
