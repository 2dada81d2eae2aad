package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"coderag/internal/app"
	"coderag/internal/index"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server on stdio exposing code search tools",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Stdout carries the protocol; logs go to stderr and the log file.
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := app.Open(cmd.Context(), cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcpserver.NewMCPServer("coderag", "1.0.0", mcpserver.WithToolCapabilities(false))
	s.AddTool(searchCodeTool(), makeSearchHandler(a.Manager))
	s.AddTool(indexProjectTool(), makeIndexHandler(a.Manager))
	s.AddTool(indexStatusTool(), makeStatusHandler(a.Manager))
	s.AddTool(listProjectsTool(), makeListProjectsHandler(a.Manager))

	err = mcpserver.ServeStdio(s)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if serr := a.Manager.Shutdown(ctx); serr != nil {
		logger.Warn("index runs still in progress at exit", "err", serr)
	}
	return err
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Semantically search indexed projects. Returns the most similar code chunks with file paths and line ranges."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language description of the code to find"),
		),
		mcp.WithString("project",
			mcp.Description("Only search this project"),
		),
		mcp.WithString("language",
			mcp.Description("Only search this language (e.g. 'go', 'python')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default 10, max 100)"),
		),
	)
}

func indexProjectTool() mcp.Tool {
	return mcp.NewTool("index_project",
		mcp.WithDescription("Start indexing a project directory in the background. Only changed files are re-embedded. Poll index_status for progress."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the project directory"),
		),
		mcp.WithString("name",
			mcp.Description("Project name (default: directory name)"),
		),
	)
}

func indexStatusTool() mcp.Tool {
	return mcp.NewTool("index_status",
		mcp.WithDescription("Get the state and progress of a project's latest index run."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project name"),
		),
	)
}

func listProjectsTool() mcp.Tool {
	return mcp.NewTool("list_projects",
		mcp.WithDescription("List indexed projects with their file and chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func makeSearchHandler(m *index.Manager) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		hits, err := m.Search(ctx, index.SearchRequest{
			Query:    query,
			Project:  req.GetString("project", ""),
			Language: req.GetString("language", ""),
			Limit:    req.GetInt("limit", index.DefaultSearchLimit),
		})
		if errors.Is(err, index.ErrEmptyQuery) {
			return mcp.NewToolResultError("query is required"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSearchResults(query, hits)), nil
	}
}

func makeIndexHandler(m *index.Manager) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		if !filepath.IsAbs(path) {
			return mcp.NewToolResultError("path must be absolute"), nil
		}
		path = filepath.Clean(path)
		name := req.GetString("name", "")
		if name == "" {
			name = filepath.Base(path)
		}
		if strings.ContainsAny(name, `/\`) {
			return mcp.NewToolResultError("name must not contain path separators"), nil
		}

		st, err := m.Trigger(ctx, name, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cannot start indexing: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Indexing of %q is %s. Call index_status with project %q to follow progress.",
			st.Project, st.Status, st.Project)), nil
	}
}

func makeStatusHandler(m *index.Manager) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project := req.GetString("project", "")
		if project == "" {
			return mcp.NewToolResultError("project is required"), nil
		}
		st, err := m.Status(ctx, project)
		if errors.Is(err, index.ErrProjectNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("project %q has never been indexed, call list_projects to see known projects", project)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatStatus(st)), nil
	}
}

func makeListProjectsHandler(m *index.Manager) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		projects, err := m.Projects(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list projects failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatProjects(projects)), nil
	}
}
