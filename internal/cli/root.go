// Package cli implements the uncover command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/soyeahso/uncover/internal/config"
	"github.com/soyeahso/uncover/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uncover",
		Short: "uncover: local chat client for Ollama and remote model endpoints",
		Long: "uncover keeps named chat sessions in SQLite, answers them with a local Ollama model\n" +
			"or a remote HTTP endpoint, and renames sessions after a short summary in the background.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.ConfigFile = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "warn"
			}
			log = logging.New(nil, level)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.uncover/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newEndpointCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
