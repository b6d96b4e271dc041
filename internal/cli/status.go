package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/uncover/internal/config"
	"github.com/soyeahso/uncover/internal/llm"
	"github.com/soyeahso/uncover/internal/store"
	"github.com/soyeahso/uncover/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, storage and backend status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "uncover %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:  %s\n", paths.ConfigFile)
			fmt.Fprintf(out, "Data:    %s\n", paths.DataDir)
			fmt.Fprintf(out, "Logs:    %s\n", paths.LogDir)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.ConfigFile)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.ConfigFile); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:  not found (using defaults)")
			}

			fmt.Fprintf(out, "Gateway: port=%d bind=%s %s\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, bridgeState(cmd.Context(), cfg.Gateway.Port))
			fmt.Fprintf(out, "Chat:    model=%s mode=%s timeout=%s\n",
				cfg.Chat.Model, cfg.Chat.Mode, cfg.Chat.TimeoutDuration())

			ollama := "not found in PATH"
			if llm.CLIExists(cfg.Chat.OllamaCommand) {
				ollama = "available"
			}
			fmt.Fprintf(out, "Ollama:  %s (%s)\n", cfg.Chat.OllamaCommand, ollama)

			if cfg.Summary.IsEnabled() {
				fmt.Fprintf(out, "Summary: every %s, %d at a time\n",
					cfg.Summary.IntervalDuration(), cfg.Summary.Concurrency)
			} else {
				fmt.Fprintln(out, "Summary: disabled")
			}

			dbPath := paths.DBPath(cfg)
			if _, err := os.Stat(dbPath); err != nil {
				fmt.Fprintf(out, "Storage: %s (not created yet)\n", dbPath)
			} else if db, err := store.Open(dbPath, log); err != nil {
				fmt.Fprintf(out, "Storage: %s (error: %v)\n", dbPath, err)
			} else {
				n, err := store.NewSessionStore(db).CountSessions(cmd.Context())
				var schema int
				if err == nil {
					schema, err = db.SchemaVersion(cmd.Context())
				}
				db.Close()
				if err != nil {
					fmt.Fprintf(out, "Storage: %s (error: %v)\n", dbPath, err)
				} else {
					fmt.Fprintf(out, "Storage: %s (%d sessions, schema v%d)\n", dbPath, n, schema)
				}
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			return nil
		},
	}
}

// bridgeState reports whether a bridge answers on the loopback port.
func bridgeState(ctx context.Context, port int) string {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/health", port), nil)
	if err != nil {
		return "(unknown)"
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "(not running)"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("(health returned %d)", resp.StatusCode)
	}
	return "(running)"
}
