package chunker

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// FileInput is one file to chunk.
type FileInput struct {
	Path     string // relative to the project root
	Project  string
	Language string
	Source   string
}

// Chunker picks a chunking strategy per file and runs it.
type Chunker struct {
	registry *Registry
	window   Window
}

// New creates a chunker backed by the given registry and window budget.
func New(r *Registry, w Window) *Chunker {
	return &Chunker{registry: r, window: w}
}

// Classify reports the strategy used for lang.
func (c *Chunker) Classify(lang string) Strategy {
	return c.registry.Classify(lang)
}

// Chunk splits a file. Languages with a grammar go through the semantic
// chunker first; anything that yields no chunks that way, and every other
// language, is split with the fixed window and tagged as text.
func (c *Chunker) Chunk(ctx context.Context, f FileInput) ([]Chunk, error) {
	if c.Classify(f.Language) == StrategySemantic {
		chunks, err := c.Semantic(ctx, f)
		if err != nil {
			return nil, err
		}
		if len(chunks) > 0 {
			return chunks, nil
		}
	}
	return c.Fallback(f), nil
}

// Semantic parses the source and chunks it at unit boundaries. It returns
// nil when no grammar is registered for the language.
func (c *Chunker) Semantic(ctx context.Context, f FileInput) ([]Chunk, error) {
	lang := c.registry.Grammar(f.Language)
	if lang == nil {
		return nil, nil
	}

	src := []byte(f.Source)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Path, err)
	}
	if tree == nil {
		return nil, nil
	}
	defer tree.Close()

	return ChunkTree(
		wrapNode(tree.RootNode(), src),
		f.Source,
		c.registry.SemanticKinds(f.Language),
		c.window,
		c.meta(f),
	), nil
}

// Fallback splits the whole file with the fixed window.
func (c *Chunker) Fallback(f FileInput) []Chunk {
	meta := c.meta(f)
	meta.ChunkType = TypeText
	return SplitLines(strings.Split(f.Source, "\n"), c.window, meta)
}

func (c *Chunker) meta(f FileInput) Meta {
	return Meta{
		FilePath:    f.Path,
		ProjectName: f.Project,
		Language:    f.Language,
	}
}
