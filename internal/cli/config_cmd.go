package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/uncover/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and edit config.yaml",
		Long: `Read and edit config.yaml by dotted key, e.g. chat.model or summary.interval.

Top-level sections: gateway, chat, summary, storage, logging, hooks.
Edits that would leave the file invalid are refused.`,
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a value or a whole section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKey(args[0])
			if err != nil {
				return err
			}
			raw, err := config.LoadRaw(paths.ConfigFile)
			if err != nil {
				return err
			}
			val, ok := key.Lookup(raw)
			if !ok {
				return fmt.Errorf("key %q not set", key)
			}

			return printValue(cmd.OutOrStdout(), val)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a value (true/false and numbers are typed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKey(args[0])
			if err != nil {
				return err
			}
			raw, err := config.LoadRaw(paths.ConfigFile)
			if err != nil {
				return err
			}

			value := parseValue(args[1])
			key.Assign(raw, value)

			if err := checkRaw(raw); err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			if err := config.SaveRaw(paths.ConfigFile, raw); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a value, falling back to the default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := config.ParseKey(args[0])
			if err != nil {
				return err
			}
			raw, err := config.LoadRaw(paths.ConfigFile)
			if err != nil {
				return err
			}
			if !key.Remove(raw) {
				return fmt.Errorf("key %q not set", key)
			}
			if err := config.SaveRaw(paths.ConfigFile, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", key)
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.ConfigFile)
		},
	}
}

// checkRaw refuses edits that would leave the file invalid.
func checkRaw(raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	cfg := config.Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &config.ConfigError{Message: err.Error()}
	}
	issues := config.Validate(&cfg)
	if len(issues) > 0 {
		return &config.ConfigError{Message: issues[0].String()}
	}
	return nil
}

// printValue writes scalars on one line and maps or lists as YAML.
func printValue(w io.Writer, v any) error {
	switch val := v.(type) {
	case map[string]any, []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		_, err := fmt.Fprintln(w, val)
		return err
	}
}

// parseValue interprets booleans and numbers; anything else stays a string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
