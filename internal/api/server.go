// Package api exposes indexing and search over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"coderag/internal/index"
	"coderag/internal/store"
)

// Service is the index manager as seen by the handlers.
type Service interface {
	Trigger(ctx context.Context, project, path string) (*store.IndexStatus, error)
	Status(ctx context.Context, project string) (*store.IndexStatus, error)
	Projects(ctx context.Context) ([]index.Project, error)
	Remove(ctx context.Context, project string) error
	Search(ctx context.Context, req index.SearchRequest) ([]index.Hit, error)
}

// Check probes one dependency for the health endpoint.
type Check func(ctx context.Context) error

// Options configures the HTTP server.
type Options struct {
	Logger       *slog.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// ServerPath maps a project path sent by a client to the path this
	// server indexes. Nil leaves paths unchanged.
	ServerPath func(string) string
	// Checks are reported by GET /api/v1/health, keyed by name.
	Checks map[string]Check
}

// Server holds the handlers' dependencies.
type Server struct {
	svc        Service
	logger     *slog.Logger
	serverPath func(string) string
	checks     map[string]Check
}

// New builds the fiber app with every route registered.
func New(svc Service, opts Options) *fiber.App {
	s := &Server{
		svc:        svc,
		logger:     opts.Logger,
		serverPath: opts.ServerPath,
		checks:     opts.Checks,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.serverPath == nil {
		s.serverPath = func(p string) string { return p }
	}

	app := fiber.New(fiber.Config{
		AppName:      "coderag",
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		ErrorHandler: s.handleError,
	})
	app.Use(recover.New())
	app.Use(s.logRequests)

	s.Register(app.Group("/api/v1"))
	return app
}

// Register sets up the routes on router.
func (s *Server) Register(router fiber.Router) {
	router.Post("/index", s.TriggerIndex)
	router.Get("/index/:project/status", s.IndexStatus)
	router.Get("/projects", s.ListProjects)
	router.Delete("/projects/:project", s.DeleteProject)
	router.Get("/search", s.Search)
	router.Get("/health", s.Health)
}

func (s *Server) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = statusFor(err)
		}
	}
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
	)
	return err
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, index.ErrProjectNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, index.ErrAlreadyRunning):
		return fiber.StatusConflict
	case errors.Is(err, index.ErrEmptyQuery):
		return fiber.StatusBadRequest
	case errors.Is(err, index.ErrShuttingDown):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c fiber.Ctx, err error) error {
	code := statusFor(err)
	msg := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
