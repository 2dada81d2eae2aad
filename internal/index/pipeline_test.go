package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/internal/chunker"
	"coderag/internal/store"
)

func TestPipeline_SecondRunSkipsUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"README.md":      "# demo\n\nThis project indexes things for search.\n",
		"docs/notes.txt": "Some notes that are long enough to be worth a chunk.\n",
	})
	h := newHarness(t)

	stats, err := h.pipeline.Run(ctx, "demo", root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 0, stats.FilesSkipped)
	assert.Equal(t, 2, h.emb.Calls(), "one embed call per changed file")
	assert.Equal(t, []string{"README.md", "docs/notes.txt"}, h.vectors.files("demo"))
	assert.NotEmpty(t, h.state.hash("demo", "README.md"))

	callsBefore := h.emb.Calls()
	opsBefore := len(h.vectors.opLog())

	stats, err = h.pipeline.Run(ctx, "demo", root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)
	assert.Equal(t, callsBefore, h.emb.Calls(), "unchanged files are not embedded")
	assert.Len(t, h.vectors.opLog(), opsBefore, "unchanged files do not touch the vector store")

	st, err := h.state.GetIndexStatus(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, st.Status)
	assert.Equal(t, 2, st.TotalFiles)
	assert.Equal(t, 2, st.ProcessedFiles, "skipped files count as processed")
	assert.Equal(t, stats.TotalChunks, st.TotalChunks)
	assert.Equal(t, 2, st.TotalChunks)
}

func TestPipeline_ChangedFileIsEmbeddedThenReplaced(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.md": strings.Repeat("first version of the document line\n", 20),
		"b.md": "an unrelated file that never changes at all\n",
	})
	h := newHarness(t)
	_, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	require.Greater(t, len(h.vectors.fileChunks("p", "a.md")), 1)
	oldHash := h.state.hash("p", "a.md")

	writeFiles(t, root, map[string]string{"a.md": "second version, much shorter than before\n"})
	opsBefore := len(h.vectors.opLog())

	stats, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)

	got := h.vectors.fileChunks("p", "a.md")
	require.Len(t, got, 1, "old chunks are not left behind")
	assert.Contains(t, got[0].Content, "second version")
	assert.NotEqual(t, oldHash, h.state.hash("p", "a.md"))

	ops := h.vectors.opLog()[opsBefore:]
	assert.Equal(t, []string{"delete a.md", "upsert a.md"}, ops)
}

func TestPipeline_TombstonesRemovedFiles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"keep.md": "this file stays in the tree for both runs\n",
		"gone.md": "this file is deleted before the second run\n",
	})
	h := newHarness(t)
	_, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	require.Equal(t, []string{"gone.md", "keep.md"}, h.vectors.files("p"))

	require.NoError(t, os.Remove(filepath.Join(root, "gone.md")))

	stats, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesRemoved)
	assert.Equal(t, []string{"keep.md"}, h.vectors.files("p"))
	assert.Empty(t, h.state.hash("p", "gone.md"))
	assert.Equal(t, 1, stats.TotalChunks)
}

func TestPipeline_TombstoneDeleteFailureKeepsHash(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"gone.md": "this file is deleted before the second run\n"})
	h := newHarness(t)
	_, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.md")))
	h.vectors.failDel["gone.md"] = true

	stats, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesRemoved)
	assert.NotEmpty(t, h.state.hash("p", "gone.md"), "retried on the next run")
}

func TestPipeline_EmbedFailureKeepsPriorVectors(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "original content of the file, version one\n"})
	h := newHarness(t)
	_, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	oldHash := h.state.hash("p", "a.md")
	oldChunks := h.vectors.fileChunks("p", "a.md")

	writeFiles(t, root, map[string]string{"a.md": "updated content of the file, version two\n"})
	h.emb.setErr(errors.New("ollama unavailable"))

	stats, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err, "per-file errors do not fail the run")
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, oldChunks, h.vectors.fileChunks("p", "a.md"))
	assert.Equal(t, oldHash, h.state.hash("p", "a.md"))

	st, err := h.state.GetIndexStatus(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, st.Status)
	assert.Equal(t, 1, st.ProcessedFiles)

	h.emb.setErr(nil)
	stats, err = h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed, "stale hash makes the file retry")
	assert.Contains(t, h.vectors.fileChunks("p", "a.md")[0].Content, "version two")
}

func TestPipeline_ZeroChunksRecordsHashOnly(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"blank.txt": "   \n\t\n   \n"})
	h := newHarness(t)

	stats, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 0, stats.ChunksAdded)
	assert.Equal(t, 0, h.emb.Calls())
	assert.Empty(t, h.vectors.opLog())
	assert.NotEmpty(t, h.state.hash("p", "blank.txt"))

	stats, err = h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestPipeline_MissingRootIsFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	root := filepath.Join(t.TempDir(), "nope")

	_, err := h.pipeline.Run(ctx, "p", root)
	require.ErrorIs(t, err, ErrProjectPathMissing)

	st, err := h.state.GetIndexStatus(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Contains(t, st.Error, "nope")
}

func TestPipeline_RootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"file.md": "x"})
	h := newHarness(t)

	_, err := h.pipeline.Run(context.Background(), "p", filepath.Join(root, "file.md"))
	require.ErrorIs(t, err, ErrProjectPathMissing)
}

func TestPipeline_ScanFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	scanErr := errors.New("permission denied")
	h.pipeline.scanner = failingScanner{err: scanErr}

	_, err := h.pipeline.Run(ctx, "p", t.TempDir())
	require.ErrorIs(t, err, scanErr)

	st, err := h.state.GetIndexStatus(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Contains(t, st.Error, "permission denied")
}

func TestPipeline_ProgressPersistedPeriodically(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		files[name+".md"] = "content for file " + name + " with enough text\n"
	}
	writeFiles(t, root, files)

	var seen []Progress
	h := newHarness(t, WithProgressEvery(2), WithProgressFunc(func(p Progress) { seen = append(seen, p) }))

	_, err := h.pipeline.Run(ctx, "p", root)
	require.NoError(t, err)

	var running []int
	for _, st := range h.state.statusHistory() {
		if st.Status == store.StatusRunning {
			running = append(running, st.ProcessedFiles)
		}
	}
	assert.Equal(t, []int{0, 2, 4}, running)

	history := h.state.statusHistory()
	last := history[len(history)-1]
	assert.Equal(t, store.StatusCompleted, last.Status)
	assert.Equal(t, 5, last.ProcessedFiles)
	assert.Equal(t, 5, last.TotalFiles)

	require.Len(t, seen, 5)
	assert.Equal(t, "a.md", seen[0].File)
	assert.Equal(t, 5, seen[4].ProcessedFiles)
	assert.Equal(t, 5, seen[4].TotalChunks)
}

func TestPipeline_ChunksCarryIdentity(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"pkg/doc.md": strings.Repeat("line of documentation text\n", 30)})
	h := newHarness(t)

	_, err := h.pipeline.Run(ctx, "proj", root)
	require.NoError(t, err)

	chunks := h.vectors.fileChunks("proj", "pkg/doc.md")
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, "proj", c.ProjectName)
		assert.Equal(t, "pkg/doc.md", c.FilePath)
		assert.Equal(t, "markdown", c.Language)
		assert.Equal(t, chunker.TypeText, c.ChunkType)
		assert.Equal(t, i, c.ChunkIndex)
	}
}

func TestPipeline_CancelledRunIsRecordedAsFailed(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "content that will never be indexed\n"})
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.pipeline.Run(ctx, "p", root)
	require.ErrorIs(t, err, context.Canceled)

	st, err := h.state.GetIndexStatus(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Contains(t, st.Error, "context canceled")
	assert.Equal(t, 0, h.emb.Calls())
}
