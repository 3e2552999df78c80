package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lan-gateway/gateway/internal/credstore"
)

func NewAllowlistCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the encrypted list of authorized client addresses",
	}

	cmd.AddCommand(
		newAllowlistListCommand(),
		newAllowlistAddCommand(),
		newAllowlistRemoveCommand(),
		newAllowlistToggleCommand("enable", true),
		newAllowlistToggleCommand("disable", false),
	)
	return cmd
}

func openStore() (*credstore.Store, error) {
	env, logger, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	return credstore.New(env.DataDir, logger), nil
}

func newAllowlistListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every allow-list entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			entries := store.Load()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "allow-list is empty")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tIP\tACTIVE\tDESCRIPTION")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", e.ID, e.IPAddress, e.IsActive(), e.Description)
			}
			return tw.Flush()
		},
	}
}

func newAllowlistAddCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <ip>",
		Short: "Authorize a client address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(args[0]) == "" {
				return errors.New("ip must not be empty")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			entry, err := store.Add(args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", entry.IPAddress, entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "free-form label")
	return cmd
}

func newAllowlistRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id|ip>",
		Short: "Delete entries matching an id or address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			n, err := store.Remove(args[0])
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no entry matches %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entr%s\n", n, plural(n, "y", "ies"))
			return nil
		},
	}
}

func newAllowlistToggleCommand(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|ip>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " entries matching an id or address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			n, err := store.SetActive(args[0], active)
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("no entry matches %q", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%sd %d entr%s\n", use, n, plural(n, "y", "ies"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
