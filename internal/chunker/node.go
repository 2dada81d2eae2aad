package chunker

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Node is the slice of a syntax tree the semantic chunker needs.
// Line numbers are 0-based, EndLine inclusive.
type Node interface {
	Kind() string
	StartLine() int
	EndLine() int
	Text() string
	Children() []Node
}

// sitterNode adapts a tree-sitter node to Node.
type sitterNode struct {
	n   *sitter.Node
	src []byte
}

func wrapNode(n *sitter.Node, src []byte) Node {
	return sitterNode{n: n, src: src}
}

func (s sitterNode) Kind() string   { return s.n.Type() }
func (s sitterNode) StartLine() int { return int(s.n.StartPoint().Row) }
func (s sitterNode) EndLine() int   { return int(s.n.EndPoint().Row) }
func (s sitterNode) Text() string   { return s.n.Content(s.src) }

func (s sitterNode) Children() []Node {
	count := int(s.n.ChildCount())
	out := make([]Node, 0, count)
	for i := 0; i < count; i++ {
		if c := s.n.Child(i); c != nil {
			out = append(out, wrapNode(c, s.src))
		}
	}
	return out
}
