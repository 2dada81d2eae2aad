package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"coderag/internal/chunker"
	"coderag/internal/store"
	"coderag/internal/walker"
)

// DefaultProgressEvery is how many files pass between persisted progress
// updates.
const DefaultProgressEvery = 50

// Stats reports the outcome of one run.
type Stats struct {
	FilesTotal   int
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	FilesRemoved int
	ChunksAdded  int
	// TotalChunks is the project's stored chunk count after the run.
	TotalChunks int
	Duration    time.Duration
}

// Progress is reported after every file.
type Progress struct {
	Project        string
	File           string
	TotalFiles     int
	ProcessedFiles int
	TotalChunks    int
}

// ProgressFunc receives per-file progress. It runs on the pipeline's
// goroutine and must not block.
type ProgressFunc func(Progress)

// fileResult is the outcome of processing a single file.
type fileResult struct {
	chunks  int
	skipped bool
	err     error
}

// Pipeline runs incremental index passes over a project tree.
type Pipeline struct {
	scanner  Scanner
	chunker  *chunker.Chunker
	embedder Embedder
	vectors  VectorStore
	state    StateStore

	logger        *slog.Logger
	progressEvery int
	onProgress    ProgressFunc
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgressEvery sets how often progress is persisted. Values below 1
// are ignored.
func WithProgressEvery(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.progressEvery = n
		}
	}
}

func WithProgressFunc(fn ProgressFunc) PipelineOption {
	return func(p *Pipeline) { p.onProgress = fn }
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(sc Scanner, ch *chunker.Chunker, emb Embedder, vs VectorStore, st StateStore, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		scanner:       sc,
		chunker:       ch,
		embedder:      emb,
		vectors:       vs,
		state:         st,
		logger:        slog.Default(),
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run indexes the tree at root under project. Files whose content hash is
// unchanged are skipped, changed files have their vectors replaced, and
// files that disappeared since the last run are removed from the index.
//
// Per-file failures are logged and leave the file's hash stale so the next
// run retries it. Only a missing root, a failed scan, a cancelled ctx or a
// store failure outside the per-file loop abort the run; those are recorded
// as failed and returned.
func (p *Pipeline) Run(ctx context.Context, project, root string) (*Stats, error) {
	start := time.Now()
	stats, err := p.run(ctx, project, root)
	if err != nil {
		p.logger.Error("index run failed", "project", project, "path", root, "err", err)
		st := store.IndexStatus{Project: project, Path: root, Status: store.StatusFailed, Error: err.Error()}
		if stats != nil {
			st.TotalFiles = stats.FilesTotal
			st.ProcessedFiles = stats.FilesIndexed + stats.FilesSkipped + stats.FilesFailed
			st.TotalChunks = stats.ChunksAdded
		}
		if serr := p.state.SetIndexStatus(context.WithoutCancel(ctx), st); serr != nil {
			p.logger.Error("record failed status", "project", project, "err", serr)
		}
		return stats, err
	}
	stats.Duration = time.Since(start)
	p.logger.Info("index run complete",
		"project", project,
		"files", stats.FilesTotal,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"removed", stats.FilesRemoved,
		"chunks", stats.TotalChunks,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context, project, root string) (*Stats, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectPathMissing, root)
		}
		return nil, fmt.Errorf("stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrProjectPathMissing, root)
	}

	files, err := p.scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	stats := &Stats{FilesTotal: len(files)}
	running := store.IndexStatus{
		Project:    project,
		Path:       root,
		Status:     store.StatusRunning,
		TotalFiles: len(files),
	}
	if err := p.state.SetIndexStatus(ctx, running); err != nil {
		return stats, fmt.Errorf("set running status: %w", err)
	}

	known, err := p.state.KnownPaths(ctx, project)
	if err != nil {
		return stats, fmt.Errorf("load known paths: %w", err)
	}

	current := make(map[string]struct{}, len(files))
	processed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("index run interrupted: %w", err)
		}
		current[f.RelPath] = struct{}{}

		res := p.processFile(ctx, project, f)
		switch {
		case res.err != nil:
			stats.FilesFailed++
			p.logger.Warn("file not indexed", "project", project, "file", f.RelPath, "err", res.err)
		case res.skipped:
			stats.FilesSkipped++
		default:
			stats.FilesIndexed++
			stats.ChunksAdded += res.chunks
		}
		processed++

		if p.onProgress != nil {
			p.onProgress(Progress{
				Project:        project,
				File:           f.RelPath,
				TotalFiles:     len(files),
				ProcessedFiles: processed,
				TotalChunks:    stats.ChunksAdded,
			})
		}
		if processed%p.progressEvery == 0 {
			running.ProcessedFiles = processed
			running.TotalChunks = stats.ChunksAdded
			if err := p.state.SetIndexStatus(ctx, running); err != nil {
				p.logger.Warn("persist progress", "project", project, "err", err)
			}
		}
	}

	stats.FilesRemoved = p.tombstone(ctx, project, known, current)

	total, err := p.vectors.Count(ctx, project)
	if err != nil {
		return stats, fmt.Errorf("count chunks: %w", err)
	}
	stats.TotalChunks = total

	done := store.IndexStatus{
		Project:        project,
		Path:           root,
		Status:         store.StatusCompleted,
		TotalFiles:     len(files),
		ProcessedFiles: processed,
		TotalChunks:    total,
	}
	if err := p.state.SetIndexStatus(ctx, done); err != nil {
		return stats, fmt.Errorf("set completed status: %w", err)
	}
	return stats, nil
}

// processFile brings one file's vectors in line with its content. Vectors
// are embedded before the old ones are deleted, so a failed embedding keeps
// the previous version searchable. The hash is recorded last.
func (p *Pipeline) processFile(ctx context.Context, project string, f walker.FileEntry) fileResult {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fileResult{err: fmt.Errorf("read: %w", err)}
	}
	hash := contentHash(data)

	stored, err := p.state.GetFileHash(ctx, project, f.RelPath)
	if err != nil {
		return fileResult{err: fmt.Errorf("get hash: %w", err)}
	}
	if stored == hash {
		return fileResult{skipped: true}
	}

	chunks, err := p.chunker.Chunk(ctx, chunker.FileInput{
		Path:     f.RelPath,
		Project:  project,
		Language: f.Language,
		Source:   strings.ToValidUTF8(string(data), ""),
	})
	if err != nil {
		return fileResult{err: fmt.Errorf("chunk: %w", err)}
	}

	if len(chunks) == 0 {
		if err := p.state.SetFileHash(ctx, project, f.RelPath, hash); err != nil {
			return fileResult{err: fmt.Errorf("set hash: %w", err)}
		}
		return fileResult{}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return fileResult{err: fmt.Errorf("embed: %w", err)}
	}
	if len(vectors) != len(chunks) {
		return fileResult{err: fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(chunks))}
	}

	// Not atomic: a crash between these two calls leaves the file without
	// vectors. Its hash is still the old one, so the next run repairs it.
	if err := p.vectors.DeleteByFile(ctx, project, f.RelPath); err != nil {
		return fileResult{err: fmt.Errorf("delete old vectors: %w", err)}
	}
	if err := p.vectors.Upsert(ctx, chunks, vectors); err != nil {
		return fileResult{err: fmt.Errorf("upsert: %w", err)}
	}
	if err := p.state.SetFileHash(ctx, project, f.RelPath, hash); err != nil {
		return fileResult{err: fmt.Errorf("set hash: %w", err)}
	}
	return fileResult{chunks: len(chunks)}
}

// tombstone drops vectors and hashes of files that were known before this
// run but are gone from the scan. A file whose vectors cannot be deleted
// keeps its hash so the next run tries again.
func (p *Pipeline) tombstone(ctx context.Context, project string, known, current map[string]struct{}) int {
	var gone []string
	for path := range known {
		if _, ok := current[path]; !ok {
			gone = append(gone, path)
		}
	}
	sort.Strings(gone)

	removed := 0
	for _, path := range gone {
		if err := p.vectors.DeleteByFile(ctx, project, path); err != nil {
			p.logger.Warn("remove deleted file vectors", "project", project, "file", path, "err", err)
			continue
		}
		if err := p.state.RemoveFile(ctx, project, path); err != nil {
			p.logger.Warn("remove deleted file hash", "project", project, "file", path, "err", err)
			continue
		}
		p.logger.Info("removed deleted file from index", "project", project, "file", path)
		removed++
	}
	return removed
}

func contentHash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
