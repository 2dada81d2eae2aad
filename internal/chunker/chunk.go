package chunker

// ChunkType tags what a chunk holds.
type ChunkType string

const (
	TypeCode      ChunkType = "code"
	TypeFunction  ChunkType = "function"
	TypeClass     ChunkType = "class"
	TypeInterface ChunkType = "interface"
	TypeStruct    ChunkType = "struct"
	TypeEnum      ChunkType = "enum"
	TypeType      ChunkType = "type"
	TypeImpl      ChunkType = "impl"
	TypeModule    ChunkType = "module"
	TypeText      ChunkType = "text"
)

// Chunk is one independently embeddable fragment of a source file.
// Lines are 1-based and inclusive. An empty Name means the chunk has none
// (gap and fallback chunks).
type Chunk struct {
	Content     string    `json:"content"`
	FilePath    string    `json:"file_path"`
	ProjectName string    `json:"project_name"`
	Language    string    `json:"language"`
	ChunkIndex  int       `json:"chunk_index"`
	StartLine   int       `json:"start_line"`
	EndLine     int       `json:"end_line"`
	ChunkType   ChunkType `json:"chunk_type"`
	Name        string    `json:"name,omitempty"`
}

// Window bounds the fixed-window splitter. Both values count characters
// (Unicode code points), not bytes.
type Window struct {
	MaxChars     int
	OverlapChars int
}

// DefaultWindow matches the stock chunk budget.
var DefaultWindow = Window{MaxChars: 800, OverlapChars: 80}

// Meta carries the identity and tagging fields stamped on every chunk a
// splitter emits. BaseLine is the 0-based line offset of the first input
// line within the file; StartIndex is the chunk_index of the first chunk.
type Meta struct {
	FilePath    string
	ProjectName string
	Language    string
	ChunkType   ChunkType
	Name        string
	BaseLine    int
	StartIndex  int
}

func (m Meta) chunk(content string, index, startLine, endLine int) Chunk {
	return Chunk{
		Content:     content,
		FilePath:    m.FilePath,
		ProjectName: m.ProjectName,
		Language:    m.Language,
		ChunkIndex:  index,
		StartLine:   startLine,
		EndLine:     endLine,
		ChunkType:   m.ChunkType,
		Name:        m.Name,
	}
}
