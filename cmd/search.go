package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"coderag/internal/index"
)

var (
	flagProject  string
	flagLanguage string
	flagLimit    int
	flagRaw      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantically search indexed code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagLimit < 1 || flagLimit > index.MaxSearchLimit {
			return fmt.Errorf("--limit must be between 1 and %d", index.MaxSearchLimit)
		}
		a, closeApp, err := openReadOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		query := strings.Join(args, " ")
		hits, err := a.Manager.Search(cmd.Context(), index.SearchRequest{
			Query:    query,
			Project:  flagProject,
			Language: flagLanguage,
			Limit:    flagLimit,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(hits)
		}

		md := formatSearchResults(query, hits)
		if flagRaw || !isTerminal(os.Stdout) {
			fmt.Println(md)
			return nil
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return err
		}
		out, err := r.Render(md)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&flagProject, "project", "p", "", "only search this project")
	searchCmd.Flags().StringVarP(&flagLanguage, "language", "l", "", "only search this language")
	searchCmd.Flags().IntVarP(&flagLimit, "limit", "n", index.DefaultSearchLimit, "maximum results")
	searchCmd.Flags().BoolVar(&flagRaw, "raw", false, "print markdown without rendering")
	searchCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
	rootCmd.AddCommand(searchCmd)
}
