package index

import (
	"context"

	"coderag/internal/chunker"
	"coderag/internal/store"
	"coderag/internal/walker"
)

// Scanner enumerates the indexable files under a project root.
type Scanner interface {
	Scan(ctx context.Context, root string) ([]walker.FileEntry, error)
}

// Embedder turns chunk contents into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore holds chunk vectors keyed by point identity.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error
	DeleteByFile(ctx context.Context, project, path string) error
	DeleteByProject(ctx context.Context, project string) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context, project string) (int, error)
	Search(ctx context.Context, q store.SearchQuery) ([]store.SearchResult, error)
}

// StateStore persists file hashes, per-project status and index metadata.
type StateStore interface {
	GetFileHash(ctx context.Context, project, path string) (string, error)
	SetFileHash(ctx context.Context, project, path, hash string) error
	RemoveFile(ctx context.Context, project, path string) error
	KnownPaths(ctx context.Context, project string) (map[string]struct{}, error)
	ResetHashes(ctx context.Context) error

	GetIndexStatus(ctx context.Context, project string) (*store.IndexStatus, error)
	SetIndexStatus(ctx context.Context, st store.IndexStatus) error
	ListIndexStatuses(ctx context.Context) ([]store.IndexStatus, error)
	RemoveProject(ctx context.Context, project string) error

	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

var (
	_ VectorStore = (*store.SQLiteStore)(nil)
	_ VectorStore = (*store.PGVectorStore)(nil)
	_ StateStore  = (*store.SQLiteStore)(nil)
)
