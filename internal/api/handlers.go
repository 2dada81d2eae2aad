package api

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"coderag/internal/index"
)

type indexRequest struct {
	ProjectName string `json:"project_name"`
	Path        string `json:"path"`
}

// TriggerIndex starts a background index run and answers 202 with the
// pending status, or 409 when the project is already being indexed.
func (s *Server) TriggerIndex(c fiber.Ctx) error {
	var body indexRequest
	if err := c.Bind().JSON(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	body.ProjectName = strings.TrimSpace(body.ProjectName)
	body.Path = strings.TrimSpace(body.Path)
	if body.ProjectName == "" || body.Path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "project_name and path are required")
	}
	if strings.ContainsAny(body.ProjectName, `/\`) {
		return fiber.NewError(fiber.StatusBadRequest, "project_name must not contain path separators")
	}

	st, err := s.svc.Trigger(c.Context(), body.ProjectName, s.serverPath(body.Path))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(st)
}

// IndexStatus returns the project's progress row.
func (s *Server) IndexStatus(c fiber.Ctx) error {
	st, err := s.svc.Status(c.Context(), c.Params("project"))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *Server) ListProjects(c fiber.Ctx) error {
	projects, err := s.svc.Projects(c.Context())
	if err != nil {
		return err
	}
	if projects == nil {
		projects = []index.Project{}
	}
	return c.JSON(projects)
}

// DeleteProject removes a project's index. Running projects answer 409.
func (s *Server) DeleteProject(c fiber.Ctx) error {
	project := c.Params("project")
	if err := s.svc.Remove(c.Context(), project); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "project '" + project + "' removed"})
}

// Search runs a semantic query. q is required; limit must be 1-100.
func (s *Server) Search(c fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query parameter q is required")
	}
	limit := index.DefaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > index.MaxSearchLimit {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be an integer between 1 and 100")
		}
		limit = n
	}

	hits, err := s.svc.Search(c.Context(), index.SearchRequest{
		Query:    q,
		Project:  c.Query("project"),
		Language: c.Query("language"),
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []index.Hit{}
	}
	return c.JSON(hits)
}

// Health probes every configured dependency. The overall status is "ok"
// only when all of them answer.
func (s *Server) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	resp := fiber.Map{}
	status := "ok"
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("health check failed", "check", name, "err", err)
			resp[name] = "disconnected"
			status = "degraded"
			continue
		}
		resp[name] = "connected"
	}
	resp["status"] = status
	return c.JSON(resp)
}
