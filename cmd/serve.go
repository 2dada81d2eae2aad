package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"coderag/internal/api"
	"coderag/internal/app"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	if ok, err := a.Embedder.HasModel(ctx); err != nil {
		logger.Warn("ollama not reachable, indexing and search will fail until it is", "url", cfg.Ollama.URL, "err", err)
	} else if !ok {
		logger.Warn("embedding model not pulled", "model", cfg.Ollama.Model, "hint", "ollama pull "+cfg.Ollama.Model)
	}

	srv := api.New(a.Manager, api.Options{
		Logger:       logger,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ServerPath:   cfg.Projects.ToServerPath,
		Checks:       a.Checks(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(cfg.Server.Addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	logger.Info("server listening", "addr", cfg.Server.Addr, "data_dir", cfg.DataDir, "vector_backend", cfg.Vector.Backend)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	// Index runs are not tied to request contexts, so they are drained here.
	if err := a.Manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("index runs still in progress at exit", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
