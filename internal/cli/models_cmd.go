package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/uncover/internal/llm"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "List, download and remove local Ollama models",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mm, err := modelManager()
			if err != nil {
				return err
			}
			names, res := mm.ListModels(cmd.Context())
			if !res.OK {
				return errors.New(res.Text)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No models installed.")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mm, err := modelManager()
			if err != nil {
				return err
			}
			return printResult(cmd, mm.PullModel(cmd.Context(), args[0]))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <model>",
		Short: "Remove an installed model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mm, err := modelManager()
			if err != nil {
				return err
			}
			return printResult(cmd, mm.DeleteModel(cmd.Context(), args[0]))
		},
	})

	return cmd
}

// modelManager talks to Ollama directly; it does not need the database.
func modelManager() (*llm.ModelManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return llm.NewModelManager(cfg.Chat.OllamaURL, log), nil
}

func printResult(cmd *cobra.Command, res llm.Result) error {
	if !res.OK {
		return errors.New(res.Text)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return nil
}
