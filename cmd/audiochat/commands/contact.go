package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func contactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage contacts",
	}
	cmd.AddCommand(contactAddCmd(), contactListCmd(), contactRemoveCmd())
	return cmd
}

func contactAddCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "add NICKNAME IP PORT",
		Short: "Add a contact sharing a 16 character secret",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.ParseUint(args[2], 10, 16)
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", args[2], err)
			}
			if secret == "" {
				return fmt.Errorf("secret required (--secret)")
			}

			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			c, err := client.AddContact(args[0], args[1], uint16(port), secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s at %s\n", c.Nickname, c.Addr())
			return nil
		},
	}
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "shared secret agreed with the contact")
	return cmd
}

func contactListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NICKNAME\tADDRESS")
			for _, c := range client.Contacts() {
				fmt.Fprintf(w, "%s\t%s\n", c.Nickname, c.Addr())
			}
			return w.Flush()
		},
	}
}

func contactRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NICKNAME",
		Short: "Remove a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.RemoveContact(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
