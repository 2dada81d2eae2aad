package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/internal/chunker"
	"coderag/internal/index"
	"coderag/internal/store"
)

type fakeService struct {
	triggered  []string
	triggerErr error
	statuses   map[string]*store.IndexStatus
	projects   []index.Project
	removeErr  error
	removed    []string
	lastSearch index.SearchRequest
	hits       []index.Hit
	searchErr  error
}

func (f *fakeService) Trigger(ctx context.Context, project, path string) (*store.IndexStatus, error) {
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	f.triggered = append(f.triggered, project+"="+path)
	return &store.IndexStatus{Project: project, Path: path, Status: store.StatusPending}, nil
}

func (f *fakeService) Status(ctx context.Context, project string) (*store.IndexStatus, error) {
	if st, ok := f.statuses[project]; ok {
		return st, nil
	}
	return nil, fmt.Errorf("%w: %s", index.ErrProjectNotFound, project)
}

func (f *fakeService) Projects(ctx context.Context) ([]index.Project, error) {
	return f.projects, nil
}

func (f *fakeService) Remove(ctx context.Context, project string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, project)
	return nil
}

func (f *fakeService) Search(ctx context.Context, req index.SearchRequest) ([]index.Hit, error) {
	f.lastSearch = req
	return f.hits, f.searchErr
}

func newTestApp(svc Service, opts Options) *fiber.App {
	return New(svc, opts)
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, string(raw)
}

func TestTriggerIndex(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, Options{ServerPath: func(p string) string { return "/data" + p }})

	code, body, _ := do(t, app, http.MethodPost, "/api/v1/index", `{"project_name":"api","path":"/src/api"}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "api", body["project_name"])
	assert.Equal(t, []string{"api=/data/src/api"}, svc.triggered)
}

func TestTriggerIndex_BadRequests(t *testing.T) {
	app := newTestApp(&fakeService{}, Options{})
	tests := map[string]string{
		"not json":        `{`,
		"missing path":    `{"project_name":"api"}`,
		"missing project": `{"path":"/src"}`,
		"separator":       `{"project_name":"a/b","path":"/src"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			code, body, _ := do(t, app, http.MethodPost, "/api/v1/index", payload)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestTriggerIndex_AlreadyRunning(t *testing.T) {
	svc := &fakeService{triggerErr: fmt.Errorf("%w: api", index.ErrAlreadyRunning)}
	app := newTestApp(svc, Options{})

	code, body, _ := do(t, app, http.MethodPost, "/api/v1/index", `{"project_name":"api","path":"/src/api"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "already in progress")
}

func TestTriggerIndex_ShuttingDown(t *testing.T) {
	app := newTestApp(&fakeService{triggerErr: index.ErrShuttingDown}, Options{})
	code, _, _ := do(t, app, http.MethodPost, "/api/v1/index", `{"project_name":"api","path":"/src/api"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestIndexStatus(t *testing.T) {
	svc := &fakeService{statuses: map[string]*store.IndexStatus{
		"api": {Project: "api", Status: store.StatusRunning, TotalFiles: 10, ProcessedFiles: 4},
	}}
	app := newTestApp(svc, Options{})

	code, body, _ := do(t, app, http.MethodGet, "/api/v1/index/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["status"])
	assert.EqualValues(t, 10, body["total_files"])
	assert.EqualValues(t, 4, body["processed_files"])

	code, _, _ = do(t, app, http.MethodGet, "/api/v1/index/ghost/status", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListProjects(t *testing.T) {
	app := newTestApp(&fakeService{}, Options{})
	code, _, raw := do(t, app, http.MethodGet, "/api/v1/projects", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, raw)

	app = newTestApp(&fakeService{projects: []index.Project{
		{Name: "api", Path: "/src/api", Status: store.StatusCompleted, FileCount: 3, ChunkCount: 12},
	}}, Options{})
	code, _, raw = do(t, app, http.MethodGet, "/api/v1/projects", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"name":"api","path":"/src/api","status":"completed","file_count":3,"chunk_count":12}]`, raw)
}

func TestDeleteProject(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, Options{})
	code, body, _ := do(t, app, http.MethodDelete, "/api/v1/projects/api", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["message"], "api")
	assert.Equal(t, []string{"api"}, svc.removed)

	tests := []struct {
		err  error
		want int
	}{
		{index.ErrProjectNotFound, http.StatusNotFound},
		{index.ErrAlreadyRunning, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		app := newTestApp(&fakeService{removeErr: tt.err}, Options{})
		code, _, _ := do(t, app, http.MethodDelete, "/api/v1/projects/api", "")
		assert.Equal(t, tt.want, code, tt.err.Error())
	}
}

func TestSearch(t *testing.T) {
	svc := &fakeService{hits: []index.Hit{{
		SearchResult: store.SearchResult{
			Chunk: chunker.Chunk{Content: "func main() {}", FilePath: "main.go", ProjectName: "api", Language: "go", ChunkType: chunker.TypeFunction, Name: "main", StartLine: 1, EndLine: 1},
			Score: 0.9,
		},
		Location: "/src/api/main.go",
	}}}
	app := newTestApp(svc, Options{})

	code, _, raw := do(t, app, http.MethodGet, "/api/v1/search?q=entry+point&project=api&language=go&limit=5", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, index.SearchRequest{Query: "entry point", Project: "api", Language: "go", Limit: 5}, svc.lastSearch)

	var hits []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "main.go", hits[0]["file_path"])
	assert.Equal(t, "function", hits[0]["chunk_type"])
	assert.Equal(t, "/src/api/main.go", hits[0]["location"])
	assert.InDelta(t, 0.9, hits[0]["score"], 1e-9)
}

func TestSearch_DefaultLimitAndEmptyResult(t *testing.T) {
	svc := &fakeService{}
	app := newTestApp(svc, Options{})

	code, _, raw := do(t, app, http.MethodGet, "/api/v1/search?q=x", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, raw)
	assert.Equal(t, index.DefaultSearchLimit, svc.lastSearch.Limit)
}

func TestSearch_Validation(t *testing.T) {
	app := newTestApp(&fakeService{}, Options{})
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=%20",
		"/api/v1/search?q=x&limit=0",
		"/api/v1/search?q=x&limit=101",
		"/api/v1/search?q=x&limit=ten",
	} {
		code, _, _ := do(t, app, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, code, target)
	}
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := newTestApp(&fakeService{}, Options{Checks: map[string]Check{"vector_store": ok, "ollama": ok}})
	code, body, _ := do(t, app, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["ollama"])

	app = newTestApp(&fakeService{}, Options{Checks: map[string]Check{"vector_store": ok, "ollama": down}})
	code, body, _ = do(t, app, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["ollama"])
	assert.Equal(t, "connected", body["vector_store"])
}
