// Package app assembles coderag's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coderag/internal/api"
	"coderag/internal/chunker"
	"coderag/internal/chunker/languages"
	"coderag/internal/config"
	"coderag/internal/embedder"
	"coderag/internal/index"
	"coderag/internal/lock"
	"coderag/internal/store"
	"coderag/internal/walker"
)

// Options tunes Open.
type Options struct {
	// ReadOnly skips the data directory lock and the startup maintenance
	// that writes to the index. Use it for commands that only query.
	ReadOnly bool
	// Pipeline options appended after the configured ones.
	Pipeline []index.PipelineOption
}

// App holds the wired components. Close releases them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	State    *store.SQLiteStore
	Vectors  index.VectorStore
	Embedder *embedder.OllamaEmbedder
	Queries  *embedder.CachedEmbedder
	Pipeline *index.Pipeline
	Manager  *index.Manager

	dirLock *lock.DirLock
	pg      *store.PGVectorStore
}

// Open wires every component for cfg. Unless opts.ReadOnly is set it takes
// the data directory lock, clears the index when the embedding model
// changed, and marks runs interrupted by a previous process as failed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.open(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) open(ctx context.Context, opts Options) error {
	cfg, logger := a.Config, a.Logger

	var err error
	if !opts.ReadOnly {
		if a.dirLock, err = lock.Acquire(cfg.DataDir); err != nil {
			return err
		}
		logger.Debug("data directory locked", "lock", a.dirLock.Path())
	}

	if a.State, err = store.Open(ctx, cfg.DBPath(), cfg.Ollama.Dimensions, logger); err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	a.Vectors = a.State
	if cfg.Vector.Backend == config.BackendPostgres {
		if a.pg, err = store.OpenPGVector(ctx, cfg.Vector.PostgresURL, cfg.Ollama.Dimensions); err != nil {
			return err
		}
		a.Vectors = a.pg
		if a.pg.Recreated() {
			logger.Warn("pgvector dimensions changed, cleared stored vectors and hashes", "dims", cfg.Ollama.Dimensions)
			if err := a.State.ResetHashes(ctx); err != nil {
				return fmt.Errorf("reset hashes: %w", err)
			}
		}
	}

	a.Embedder = NewEmbedder(cfg)
	a.Queries = embedder.NewCachedEmbedder(a.Embedder, cfg.Ollama.CacheSize)

	ch := chunker.New(languages.Default(), chunker.Window{
		MaxChars:     cfg.Chunk.MaxChars,
		OverlapChars: cfg.Chunk.OverlapChars,
	})
	sc := walker.New(walker.WithMaxFileSize(cfg.Index.MaxFileSize), walker.WithLogger(logger))

	popts := append([]index.PipelineOption{
		index.WithLogger(logger),
		index.WithProgressEvery(cfg.Index.ProgressEvery),
	}, opts.Pipeline...)
	a.Pipeline = index.NewPipeline(sc, ch, a.Embedder, a.Vectors, a.State, popts...)
	a.Manager = index.NewManager(a.Pipeline, a.State, a.Vectors, a.Queries, index.ManagerOptions{
		Logger:   logger,
		HostPath: cfg.Projects.ToHostPath,
	})

	if opts.ReadOnly {
		return nil
	}
	if _, err := a.Manager.EnsureModel(ctx, cfg.Ollama.Model); err != nil {
		return err
	}
	if _, err := a.Manager.RecoverInterrupted(ctx); err != nil {
		return err
	}
	return nil
}

// NewEmbedder builds the Ollama client described by cfg.
func NewEmbedder(cfg *config.Config) *embedder.OllamaEmbedder {
	return embedder.NewOllamaEmbedder(embedder.Options{
		BaseURL:     cfg.Ollama.URL,
		Model:       cfg.Ollama.Model,
		Dimensions:  cfg.Ollama.Dimensions,
		BatchSize:   cfg.Ollama.BatchSize,
		Concurrency: cfg.Ollama.Concurrency,
		Token:       cfg.Ollama.Token,
		Timeout:     cfg.Ollama.Timeout,
	})
}

// Checks returns the dependency probes for the health endpoint.
func (a *App) Checks() map[string]api.Check {
	return map[string]api.Check{
		"vector_store": func(ctx context.Context) error {
			if a.pg != nil {
				return a.pg.Ping(ctx)
			}
			return a.State.Ping(ctx)
		},
		"ollama": a.Embedder.Health,
	}
}

// Close releases the stores and the data directory lock.
func (a *App) Close() error {
	var errs []error
	if a.pg != nil {
		errs = append(errs, a.pg.Close())
	}
	if a.State != nil {
		errs = append(errs, a.State.Close())
	}
	errs = append(errs, a.dirLock.Release())
	return errors.Join(errs...)
}
