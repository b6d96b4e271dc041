package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyeahso/uncover/internal/chat"
	"github.com/soyeahso/uncover/internal/domain"
)

// openFromConfig loads the config and opens the shared components.
func openFromConfig(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openApp(cmd.Context(), cfg, log)
}

func newChatCmd() *cobra.Command {
	var (
		model  string
		mode   string
		apiURL string
		token  string
	)

	cmd := &cobra.Command{
		Use:   "chat <session-id> <message...>",
		Short: "Ask one question in a session and print the answer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			settings := a.settings.Get()
			if model != "" {
				settings.Model = model
			}
			if mode != "" {
				settings.Mode = domain.Mode(mode)
			}
			if apiURL != "" {
				settings.APIURL = apiURL
			}
			if token != "" {
				settings.AccessToken = token
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sessionID := args[0]
			turn, err := a.chat.Submit(ctx, chat.SubmitRequest{
				SessionID: sessionID,
				Input:     strings.Join(args[1:], " "),
				Settings:  settings,
			})
			if err != nil {
				return err
			}

			resolved, err := a.chat.Wait(ctx, turn.Key)
			if err != nil {
				return err
			}
			if !resolved.OK {
				return errors.New(resolved.Response)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resolved.Response)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model name (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "", "backend mode: local or api")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "endpoint URL for api mode")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for api mode")

	return cmd
}
