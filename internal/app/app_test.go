package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/internal/config"
	"coderag/internal/lock"
	"coderag/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.Ollama.Dimensions = 4
	return cfg
}

func TestOpen_LocksDataDir(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, nil, Options{})
	require.NoError(t, err)

	_, err = Open(ctx, cfg, nil, Options{})
	require.ErrorIs(t, err, lock.ErrLocked)

	ro, err := Open(ctx, cfg, nil, Options{ReadOnly: true})
	require.NoError(t, err, "readers do not need the lock")
	require.NoError(t, ro.Close())

	require.NoError(t, a.Close())

	again, err := Open(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOpen_RecordsModelAndRecoversRuns(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	model, err := a.State.GetMeta(ctx, store.MetaEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, cfg.Ollama.Model, model)

	require.NoError(t, a.State.SetIndexStatus(ctx, store.IndexStatus{Project: "p", Status: store.StatusRunning}))
	require.NoError(t, a.Close())

	a, err = Open(ctx, cfg, nil, Options{})
	require.NoError(t, err)
	defer a.Close()
	st, err := a.Manager.Status(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, st.Status)
	assert.Contains(t, a.Checks(), "ollama")
	assert.Contains(t, a.Checks(), "vector_store")
	assert.NoError(t, a.Checks()["vector_store"](ctx))
}
