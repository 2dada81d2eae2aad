package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// minGapChars is the trimmed length a gap must exceed to become a chunk.
const minGapChars = 20

// kindTypes is checked in order; the first keyword contained in a node kind
// decides its chunk type.
var kindTypes = []struct {
	keyword string
	typ     ChunkType
}{
	{"function", TypeFunction},
	{"method", TypeFunction},
	{"arrow", TypeFunction},
	{"class", TypeClass},
	{"interface", TypeInterface},
	{"trait", TypeInterface},
	{"struct", TypeStruct},
	{"enum", TypeEnum},
	{"type", TypeType},
	{"impl", TypeImpl},
	{"mod", TypeModule},
	{"namespace", TypeModule},
}

var nameKinds = map[string]bool{
	"identifier":          true,
	"name":                true,
	"type_identifier":     true,
	"property_identifier": true,
}

// ChunkTree splits src at the semantic units found under root.
//
// Units are the outermost nodes whose kind is in kinds; nothing nested inside
// a unit is extracted separately. Text between units becomes an unnamed code
// chunk when it is long enough to matter. Units over the window budget are
// handed to SplitLines with their type and name preserved. If root holds no
// unit at all, the whole file is emitted as code.
func ChunkTree(root Node, src string, kinds map[string]bool, w Window, meta Meta) []Chunk {
	lines := strings.Split(src, "\n")
	nodes := collectSemantic(root, kinds, nil)
	if len(nodes) == 0 {
		return wholeFile(src, lines, w, meta)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].StartLine() < nodes[j].StartLine()
	})

	var chunks []Chunk
	lastEnd := 0
	for _, n := range nodes {
		start, end := n.StartLine(), n.EndLine()
		if start > lastEnd {
			chunks = appendGap(chunks, lines, lastEnd, start, meta)
		}

		um := meta
		um.ChunkType = kindChunkType(n.Kind())
		um.Name = nodeName(n)

		text := n.Text()
		if utf8.RuneCountInString(text) <= w.MaxChars {
			chunks = append(chunks, um.chunk(text, meta.StartIndex+len(chunks), start+1, end+1))
		} else {
			um.BaseLine = start
			um.StartIndex = meta.StartIndex + len(chunks)
			chunks = append(chunks, SplitLines(strings.Split(text, "\n"), w, um)...)
		}
		lastEnd = end + 1
	}

	if lastEnd < len(lines) {
		chunks = appendGap(chunks, lines, lastEnd, len(lines), meta)
	}
	return chunks
}

// collectSemantic gathers matching nodes depth-first, not descending into
// a node once it matches.
func collectSemantic(n Node, kinds map[string]bool, out []Node) []Node {
	if kinds[n.Kind()] {
		return append(out, n)
	}
	for _, c := range n.Children() {
		out = collectSemantic(c, kinds, out)
	}
	return out
}

// appendGap emits lines[from:to] as a code chunk if its trimmed text is
// longer than minGapChars.
func appendGap(chunks []Chunk, lines []string, from, to int, meta Meta) []Chunk {
	text := strings.TrimSpace(strings.Join(lines[from:to], "\n"))
	if utf8.RuneCountInString(text) <= minGapChars {
		return chunks
	}
	gm := meta
	gm.ChunkType = TypeCode
	gm.Name = ""
	return append(chunks, gm.chunk(text, meta.StartIndex+len(chunks), from+1, to))
}

func wholeFile(src string, lines []string, w Window, meta Meta) []Chunk {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	meta.ChunkType = TypeCode
	meta.Name = ""
	if utf8.RuneCountInString(src) <= w.MaxChars {
		return []Chunk{meta.chunk(src, meta.StartIndex, 1, strings.Count(src, "\n")+1)}
	}
	return SplitLines(lines, w, meta)
}

func kindChunkType(kind string) ChunkType {
	for _, kt := range kindTypes {
		if strings.Contains(kind, kt.keyword) {
			return kt.typ
		}
	}
	return TypeCode
}

func nodeName(n Node) string {
	for _, c := range n.Children() {
		if nameKinds[c.Kind()] {
			return c.Text()
		}
	}
	return ""
}
