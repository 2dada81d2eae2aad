package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"coderag/internal/chunker"
	"coderag/internal/store"
	"coderag/internal/walker"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
	err   error
	gate  chan struct{} // when set, Embed blocks until it is closed
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	e.texts += len(texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	return []float32{float32(len(q)), 1, 0}, nil
}

func (e *fakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *fakeEmbedder) setErr(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// memVectors keeps chunks per project and file and logs every mutation.
type memVectors struct {
	mu        sync.Mutex
	chunks    map[string]map[string][]chunker.Chunk
	ops       []string
	failDel   map[string]bool
	deleteAll int
}

func newMemVectors() *memVectors {
	return &memVectors{chunks: map[string]map[string][]chunker.Chunk{}, failDel: map[string]bool{}}
}

func (v *memVectors) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range chunks {
		files := v.chunks[c.ProjectName]
		if files == nil {
			files = map[string][]chunker.Chunk{}
			v.chunks[c.ProjectName] = files
		}
		files[c.FilePath] = append(files[c.FilePath], c)
		v.ops = append(v.ops, "upsert "+c.FilePath)
	}
	return nil
}

func (v *memVectors) DeleteByFile(ctx context.Context, project, path string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failDel[path] {
		return errors.New("delete refused")
	}
	delete(v.chunks[project], path)
	v.ops = append(v.ops, "delete "+path)
	return nil
}

func (v *memVectors) DeleteByProject(ctx context.Context, project string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.chunks, project)
	return nil
}

func (v *memVectors) DeleteAll(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunks = map[string]map[string][]chunker.Chunk{}
	v.deleteAll++
	return nil
}

func (v *memVectors) Count(ctx context.Context, project string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, cs := range v.chunks[project] {
		n += len(cs)
	}
	return n, nil
}

func (v *memVectors) Search(ctx context.Context, q store.SearchQuery) ([]store.SearchResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []store.SearchResult
	for project, files := range v.chunks {
		if q.Project != "" && q.Project != project {
			continue
		}
		for _, cs := range files {
			for _, c := range cs {
				if q.Language != "" && q.Language != c.Language {
					continue
				}
				out = append(out, store.SearchResult{Chunk: c, Score: 1 / float64(1+len(c.Content))})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (v *memVectors) files(project string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []string
	for f := range v.chunks[project] {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (v *memVectors) fileChunks(project, path string) []chunker.Chunk {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]chunker.Chunk(nil), v.chunks[project][path]...)
}

func (v *memVectors) opLog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.ops...)
}

// memState is an in-memory StateStore that records every status write.
type memState struct {
	mu       sync.Mutex
	hashes   map[string]map[string]string
	statuses map[string]store.IndexStatus
	history  []store.IndexStatus
	meta     map[string]string
	resets   int
}

func newMemState() *memState {
	return &memState{
		hashes:   map[string]map[string]string{},
		statuses: map[string]store.IndexStatus{},
		meta:     map[string]string{},
	}
}

func (s *memState) GetFileHash(ctx context.Context, project, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[project][path], nil
}

func (s *memState) SetFileHash(ctx context.Context, project, path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[project] == nil {
		s.hashes[project] = map[string]string{}
	}
	s.hashes[project][path] = hash
	return nil
}

func (s *memState) RemoveFile(ctx context.Context, project, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes[project], path)
	return nil
}

func (s *memState) KnownPaths(ctx context.Context, project string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]struct{}{}
	for p := range s.hashes[project] {
		out[p] = struct{}{}
	}
	return out, nil
}

func (s *memState) ResetHashes(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes = map[string]map[string]string{}
	s.resets++
	return nil
}

func (s *memState) GetIndexStatus(ctx context.Context, project string) (*store.IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[project]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *memState) SetIndexStatus(ctx context.Context, st store.IndexStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Path == "" {
		st.Path = s.statuses[st.Project].Path
	}
	s.statuses[st.Project] = st
	s.history = append(s.history, st)
	return nil
}

func (s *memState) ListIndexStatuses(ctx context.Context) ([]store.IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.IndexStatus
	for _, st := range s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Project < out[j].Project })
	return out, nil
}

func (s *memState) RemoveProject(ctx context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, project)
	delete(s.statuses, project)
	return nil
}

func (s *memState) GetMeta(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta[key], nil
}

func (s *memState) SetMeta(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *memState) hash(project, path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[project][path]
}

func (s *memState) statusHistory() []store.IndexStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.IndexStatus(nil), s.history...)
}

type failingScanner struct{ err error }

func (f failingScanner) Scan(ctx context.Context, root string) ([]walker.FileEntry, error) {
	return nil, f.err
}

// harness bundles a pipeline over in-memory stores. The chunker has no
// grammars, so every file goes through the window splitter.
type harness struct {
	emb      *fakeEmbedder
	vectors  *memVectors
	state    *memState
	pipeline *Pipeline
}

func newHarness(t *testing.T, opts ...PipelineOption) *harness {
	t.Helper()
	h := &harness{
		emb:     &fakeEmbedder{},
		vectors: newMemVectors(),
		state:   newMemState(),
	}
	ch := chunker.New(chunker.NewRegistry(), chunker.Window{MaxChars: 200, OverlapChars: 20})
	h.pipeline = NewPipeline(walker.New(), ch, h.emb, h.vectors, h.state, opts...)
	return h
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
