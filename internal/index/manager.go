package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"coderag/internal/store"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Logger *slog.Logger
	// HostPath maps an absolute path as the server sees it back to the
	// caller's view. Nil leaves paths unchanged.
	HostPath func(string) string
}

// Manager owns index runs. It guarantees at most one run per project at a
// time and tracks background runs so shutdown can wait for them.
type Manager struct {
	pipeline *Pipeline
	state    StateStore
	vectors  VectorStore
	queries  QueryEmbedder
	logger   *slog.Logger
	hostPath func(string) string

	mu       sync.Mutex
	inflight map[string]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewManager creates a Manager.
func NewManager(p *Pipeline, st StateStore, vs VectorStore, qe QueryEmbedder, opts ManagerOptions) *Manager {
	m := &Manager{
		pipeline: p,
		state:    st,
		vectors:  vs,
		queries:  qe,
		logger:   opts.Logger,
		hostPath: opts.HostPath,
		inflight: make(map[string]struct{}),
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.hostPath == nil {
		m.hostPath = func(p string) string { return p }
	}
	return m
}

// admit marks project pending, or fails if a run is already active. The
// status read and write happen under one lock shared by all projects.
func (m *Manager) admit(ctx context.Context, project, path string) (*store.IndexStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}
	if _, ok := m.inflight[project]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, project)
	}
	cur, err := m.state.GetIndexStatus(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if cur != nil && cur.Status == store.StatusRunning {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, project)
	}

	pending := store.IndexStatus{Project: project, Path: path, Status: store.StatusPending}
	if err := m.state.SetIndexStatus(ctx, pending); err != nil {
		return nil, fmt.Errorf("set pending status: %w", err)
	}
	m.inflight[project] = struct{}{}
	m.wg.Add(1)
	return &pending, nil
}

func (m *Manager) release(project string) {
	m.mu.Lock()
	delete(m.inflight, project)
	m.mu.Unlock()
	m.wg.Done()
}

// Trigger starts a background run for project rooted at path and returns
// the pending status. The run outlives ctx; use Wait or Shutdown to await
// it.
func (m *Manager) Trigger(ctx context.Context, project, path string) (*store.IndexStatus, error) {
	st, err := m.admit(ctx, project, path)
	if err != nil {
		return nil, err
	}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer m.release(project)
		if _, err := m.pipeline.Run(runCtx, project, path); err != nil {
			m.logger.Error("background index failed", "project", project, "err", err)
		}
	}()
	m.logger.Info("index triggered", "project", project, "path", path)
	return st, nil
}

// Run performs a run in the caller's goroutine, with the same admission
// check as Trigger.
func (m *Manager) Run(ctx context.Context, project, path string) (*Stats, error) {
	if _, err := m.admit(ctx, project, path); err != nil {
		return nil, err
	}
	defer m.release(project)
	return m.pipeline.Run(ctx, project, path)
}

// inFlight reports whether project has a run in flight in this process.
func (m *Manager) inFlight(project string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[project]
	return ok
}

// Wait blocks until every in-flight run has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown stops admitting runs and waits for in-flight ones, or for ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for index runs: %w", ctx.Err())
	}
}

// Status returns the project's status row.
func (m *Manager) Status(ctx context.Context, project string) (*store.IndexStatus, error) {
	st, err := m.state.GetIndexStatus(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if st == nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	return st, nil
}

// Project summarizes one indexed project.
type Project struct {
	Name       string       `json:"name"`
	Path       string       `json:"path"`
	Status     store.Status `json:"status"`
	FileCount  int          `json:"file_count"`
	ChunkCount int          `json:"chunk_count"`
	IndexedAt  string       `json:"indexed_at,omitempty"`
}

// Projects lists every project with a status row. Chunk counts come from
// the vector store, not the status row.
func (m *Manager) Projects(ctx context.Context) ([]Project, error) {
	rows, err := m.state.ListIndexStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	out := make([]Project, 0, len(rows))
	for _, r := range rows {
		n, err := m.vectors.Count(ctx, r.Project)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", r.Project, err)
		}
		p := Project{
			Name:       r.Project,
			Path:       m.hostPath(r.Path),
			Status:     r.Status,
			FileCount:  r.TotalFiles,
			ChunkCount: n,
		}
		if r.CompletedAt != nil {
			p.IndexedAt = r.CompletedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, p)
	}
	return out, nil
}

// Remove deletes a project's vectors, hashes and status. A project with a
// run pending or in progress cannot be removed.
func (m *Manager) Remove(ctx context.Context, project string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.inflight[project]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, project)
	}
	st, err := m.state.GetIndexStatus(ctx, project)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}
	if st == nil {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}
	if st.Status == store.StatusRunning {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, project)
	}

	if err := m.vectors.DeleteByProject(ctx, project); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := m.state.RemoveProject(ctx, project); err != nil {
		return fmt.Errorf("remove project state: %w", err)
	}
	m.logger.Info("project removed", "project", project)
	return nil
}

// SearchRequest is a semantic query with optional filters.
type SearchRequest struct {
	Query    string
	Project  string
	Language string
	Limit    int
}

// Hit is a search result. Location is the chunk's file as the caller sees
// it, when the project's root is known.
type Hit struct {
	store.SearchResult
	Location string `json:"location,omitempty"`
}

// Search embeds the query and returns the nearest chunks, best first.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	vec, err := m.queries.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := m.vectors.Search(ctx, store.SearchQuery{
		Vector:   vec,
		Limit:    limit,
		Project:  req.Project,
		Language: req.Language,
	})
	if err != nil {
		return nil, err
	}

	roots, err := m.roots(ctx)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{SearchResult: r}
		if root := roots[r.ProjectName]; root != "" {
			hits[i].Location = m.hostPath(filepath.Join(root, filepath.FromSlash(r.FilePath)))
		}
	}
	return hits, nil
}

func (m *Manager) roots(ctx context.Context) (map[string]string, error) {
	rows, err := m.state.ListIndexStatuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Project] = r.Path
	}
	return out, nil
}

// EnsureModel compares model with the one the index was built with. On a
// change every vector and file hash is dropped so the next runs re-embed
// everything. It reports whether that happened.
func (m *Manager) EnsureModel(ctx context.Context, model string) (bool, error) {
	prev, err := m.state.GetMeta(ctx, store.MetaEmbeddingModel)
	if err != nil {
		return false, fmt.Errorf("get embedding model: %w", err)
	}
	changed := prev != "" && prev != model
	if changed {
		m.logger.Warn("embedding model changed, clearing index", "from", prev, "to", model)
		if err := m.vectors.DeleteAll(ctx); err != nil {
			return false, fmt.Errorf("delete vectors: %w", err)
		}
		if err := m.state.ResetHashes(ctx); err != nil {
			return false, fmt.Errorf("reset hashes: %w", err)
		}
	}
	if prev != model {
		if err := m.state.SetMeta(ctx, store.MetaEmbeddingModel, model); err != nil {
			return changed, fmt.Errorf("set embedding model: %w", err)
		}
	}
	return changed, nil
}

// RecoverInterrupted marks runs left pending or running by a previous
// process as failed, so they no longer block new runs.
func (m *Manager) RecoverInterrupted(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.state.ListIndexStatuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list statuses: %w", err)
	}
	n := 0
	for _, r := range rows {
		if !r.Status.Active() {
			continue
		}
		if _, ok := m.inflight[r.Project]; ok {
			continue
		}
		r.Status = store.StatusFailed
		r.Error = "interrupted: server stopped during indexing"
		if err := m.state.SetIndexStatus(ctx, r); err != nil {
			return n, fmt.Errorf("mark %s failed: %w", r.Project, err)
		}
		m.logger.Warn("marked interrupted run as failed", "project", r.Project)
		n++
	}
	return n, nil
}
