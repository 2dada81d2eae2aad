package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"coderag/internal/app"
	"coderag/internal/store"
)

var flagJSON bool

// openReadOnly opens the app for commands that only read the index.
func openReadOnly(ctx context.Context) (*app.App, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Open(ctx, cfg, logger, app.Options{ReadOnly: true})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		cleanup()
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List indexed projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		projects, err := a.Manager.Projects(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects indexed yet. Run 'coderag index <path>' to add one.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tFILES\tCHUNKS\tINDEXED\tPATH")
		for _, p := range projects {
			indexed := p.IndexedAt
			if indexed == "" {
				indexed = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", p.Name, p.Status, p.FileCount, p.ChunkCount, indexed, p.Path)
		}
		return w.Flush()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <project>",
	Short: "Show the latest index run of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		st, err := a.Manager.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(st)
		}
		printStatus(st)
		return nil
	},
}

func printStatus(st *store.IndexStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "project:\t%s\n", st.Project)
	fmt.Fprintf(w, "path:\t%s\n", st.Path)
	fmt.Fprintf(w, "status:\t%s\n", st.Status)
	fmt.Fprintf(w, "progress:\t%d / %d files\n", st.ProcessedFiles, st.TotalFiles)
	fmt.Fprintf(w, "chunks:\t%d\n", st.TotalChunks)
	if st.StartedAt != nil {
		fmt.Fprintf(w, "started:\t%s\n", st.StartedAt.Local().Format(time.DateTime))
	}
	if st.CompletedAt != nil {
		fmt.Fprintf(w, "completed:\t%s\n", st.CompletedAt.Local().Format(time.DateTime))
	}
	if st.Error != "" {
		fmt.Fprintf(w, "error:\t%s\n", st.Error)
	}
	w.Flush()
}

var removeCmd = &cobra.Command{
	Use:   "remove <project>",
	Short: "Delete a project's vectors, hashes and status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
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

		if err := a.Manager.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Project %q removed.\n", args[0])
		return nil
	},
}

func init() {
	projectsCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
	statusCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
	rootCmd.AddCommand(projectsCmd, statusCmd, removeCmd)
}
