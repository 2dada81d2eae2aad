package cmd

import (
	"fmt"
	"strings"

	"coderag/internal/chunker"
	"coderag/internal/index"
	"coderag/internal/store"
)

// formatSearchResults renders hits as markdown, one fenced block per chunk.
func formatSearchResults(query string, hits []index.Hit) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(hits))

	for i, h := range hits {
		loc := h.Location
		if loc == "" {
			loc = h.FilePath
		}
		fmt.Fprintf(&sb, "### %d. `%s:%d-%d`\n\n", i+1, loc, h.StartLine, h.EndLine)
		fmt.Fprintf(&sb, "**Project:** %s  \n**Type:** %s", h.ProjectName, h.ChunkType)
		if h.Name != "" {
			fmt.Fprintf(&sb, "  \n**Name:** %s", h.Name)
		}
		fmt.Fprintf(&sb, "  \n**Score:** %.3f\n\n", h.Score)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", fenceLanguage(h.Language), strings.TrimRight(h.Content, "\n"))
	}
	return sb.String()
}

// fenceLanguage maps index language names to common code fence tags.
func fenceLanguage(lang string) string {
	switch lang {
	case chunker.LanguageUnknown:
		return ""
	case "c_sharp":
		return "csharp"
	default:
		return lang
	}
}

func formatProjects(projects []index.Project) string {
	if len(projects) == 0 {
		return "No projects indexed yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Indexed projects (%d)\n\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(&sb, "- **%s** (%s, %d files, %d chunks) %s\n", p.Name, p.Status, p.FileCount, p.ChunkCount, p.Path)
	}
	return sb.String()
}

func formatStatus(st *store.IndexStatus) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s: %s\n\n", st.Project, st.Status)
	fmt.Fprintf(&sb, "- **Path:** %s\n", st.Path)
	fmt.Fprintf(&sb, "- **Progress:** %d / %d files\n", st.ProcessedFiles, st.TotalFiles)
	fmt.Fprintf(&sb, "- **Chunks:** %d\n", st.TotalChunks)
	if st.Error != "" {
		fmt.Fprintf(&sb, "- **Error:** %s\n", st.Error)
	}
	return sb.String()
}
