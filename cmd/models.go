package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coderag/internal/app"
)

var flagProbe bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models pulled into Ollama",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		emb := app.NewEmbedder(cfg)

		models, err := emb.ListModels(cmd.Context())
		if err != nil {
			return fmt.Errorf("%w (is ollama running at %s?)", err, cfg.Ollama.URL)
		}
		if len(models) == 0 {
			fmt.Printf("No models pulled. Run 'ollama pull %s'.\n", emb.Model())
		}
		for _, m := range models {
			marker := " "
			if m.Name == emb.Model() || m.Name == emb.Model()+":latest" {
				marker = "*"
			}
			fmt.Printf("%s %-40s %8s\n", marker, m.Name, m.HumanSize())
		}

		if !flagProbe {
			return nil
		}
		// Embed rejects vectors whose size differs from ollama.dimensions.
		vec, err := emb.EmbedSingle(cmd.Context(), "coderag probe")
		if err != nil {
			return fmt.Errorf("probe %s: %w", emb.Model(), err)
		}
		fmt.Printf("\n%s returns %d-dimensional vectors (configured: %d)\n", emb.Model(), len(vec), emb.Dimensions())
		return nil
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&flagProbe, "probe", false, "embed a test string and check the vector size")
	rootCmd.AddCommand(modelsCmd)
}
