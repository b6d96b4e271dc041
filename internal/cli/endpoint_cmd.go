package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soyeahso/uncover/internal/domain"
)

func newEndpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Save and test the remote model endpoint",
	}

	cmd.AddCommand(newEndpointSaveCmd())
	cmd.AddCommand(newEndpointShowCmd())
	cmd.AddCommand(newEndpointTestCmd())
	return cmd
}

func newEndpointSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <url> <port> <protocol> <api-key>",
		Short: "Save a new endpoint configuration",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid port %q", args[1])
			}
			ep := domain.EndpointConfig{URL: args[0], Port: port, Protocol: args[2], APIKey: args[3]}
			if !ep.Complete() {
				return errors.New("Please fill in all fields.")
			}

			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			saved, err := a.endpoints.SaveEndpoint(cmd.Context(), ep.URL, ep.Port, ep.Protocol, ep.APIKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved endpoint %s\n", saved.ModelURL())
			return nil
		},
	}
}

func newEndpointShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the most recently saved endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ep, found, err := a.endpoints.LatestEndpoint(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !found {
				fmt.Fprintln(out, "No endpoint saved.")
				return nil
			}
			fmt.Fprintf(out, "URL:      %s\n", ep.ModelURL())
			fmt.Fprintf(out, "API key:  %s\n", maskSecret(ep.APIKey))
			fmt.Fprintf(out, "Saved:    %s\n", ep.SavedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newEndpointTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the saved endpoint answers GET /test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ep, _, err := a.endpoints.LatestEndpoint(cmd.Context())
			if err != nil {
				return err
			}
			res := a.remote.Probe(cmd.Context(), ep)
			if !res.OK {
				return errors.New(res.Text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return nil
		},
	}
}

// maskSecret keeps the last four characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
