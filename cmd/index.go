package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"coderag/internal/app"
	"coderag/internal/index"
	"coderag/internal/tui"
)

var (
	flagName  string
	flagPlain bool
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Index a project for search",
	Long: `Index a project directory. Unchanged files are skipped, changed files
are re-embedded and files deleted since the last run are dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	name := flagName
	if name == "" {
		name = filepath.Base(root)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	interactive := !flagPlain && isTerminal(os.Stdout)
	logger, cleanup, err := setupLogging(cfg, interactive)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The progress view is created after the app, so the pipeline reports
	// through this variable.
	var report index.ProgressFunc
	a, err := app.Open(ctx, cfg, logger, app.Options{
		Pipeline: []index.PipelineOption{
			index.WithProgressFunc(func(p index.Progress) {
				if report != nil {
					report(p)
				}
			}),
		},
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if !interactive {
		fmt.Printf("Indexing %s (%s)...\n", name, root)
		stats, err := a.Manager.Run(ctx, name, root)
		if stats != nil {
			fmt.Print(tui.Summary(stats))
		}
		return err
	}

	_, err = tui.RunIndex(ctx, name, root, func(ctx context.Context, progress index.ProgressFunc) (*index.Stats, error) {
		report = progress
		return a.Manager.Run(ctx, name, root)
	})
	if errors.Is(err, tui.ErrInterrupted) {
		fmt.Println("Stopped. Files indexed so far are kept; run again to resume.")
		return nil
	}
	return err
}

func init() {
	indexCmd.Flags().StringVar(&flagName, "name", "", "project name (default: directory name)")
	indexCmd.Flags().BoolVar(&flagPlain, "plain", false, "print a summary instead of the progress view")
	rootCmd.AddCommand(indexCmd)
}
