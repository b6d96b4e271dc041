package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage chat sessions",
	}

	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionNewCmd())
	cmd.AddCommand(newSessionDeleteCmd())
	cmd.AddCommand(newSessionRenameCmd())
	cmd.AddCommand(newSessionHistoryCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.chat.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
}

func newSessionNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create the next \"Session N\"",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sess, err := a.chat.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.chat.DeleteSession(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSessionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <name>",
		Short: "Set a session's display name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.chat.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], args[1])
			return nil
		},
	}
}

func newSessionHistoryCmd() *cobra.Command {
	var questionsOnly bool

	cmd := &cobra.Command{
		Use:   "history <session-id>",
		Short: "Print a session's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openFromConfig(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if questionsOnly {
				questions, err := a.chat.Questions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, q := range questions {
					fmt.Fprintln(out, q)
				}
				return nil
			}

			msgs, err := a.chat.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Fprintf(out, "%s: %s\n", m.Sender.Label(), m.Body)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&questionsOnly, "questions", "q", false, "print only the questions asked")
	return cmd
}
