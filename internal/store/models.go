package store

import (
	"time"

	"coderag/internal/chunker"
)

// Status is the lifecycle state of a project's index run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active reports whether a run in this state has not finished.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// IndexStatus is the per-project progress row. StartedAt is stamped when a
// run enters running; CompletedAt when it completes or fails.
type IndexStatus struct {
	Project        string     `json:"project_name"`
	Path           string     `json:"path,omitempty"`
	Status         Status     `json:"status"`
	TotalFiles     int        `json:"total_files"`
	ProcessedFiles int        `json:"processed_files"`
	TotalChunks    int        `json:"total_chunks"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SearchQuery selects the nearest chunks to Vector. Empty Project or
// Language means no filter on that field.
type SearchQuery struct {
	Vector   []float32
	Limit    int
	Project  string
	Language string
}

// SearchResult is a stored chunk with its cosine similarity to the query.
type SearchResult struct {
	chunker.Chunk
	Score float64 `json:"score"`
}

// Meta keys recorded alongside the index.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaVectorDims     = "vector_dims"
)
