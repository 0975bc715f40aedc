package commands

import (
	"fmt"

	"github.com/chanderlud/audio-chat/contact"
	"github.com/spf13/cobra"
)

func secretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Print a random secret to share with a new contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := contact.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}
