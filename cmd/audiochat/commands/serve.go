package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	audiochat "github.com/chanderlud/audio-chat"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the client: answer calls and serve the local API",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := client.Listen(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Control port: %s\nLocal API:    http://%s\n",
				client.ControlAddr(), client.APIAddr())
			return client.Serve(ctx)
		},
	}
}

func openClient() (*audiochat.Client, error) {
	var opts []audiochat.Option
	if passphrase != "" {
		opts = append(opts, audiochat.WithPassphrase([]byte(passphrase)))
	}
	return audiochat.New(cfg, home, opts...)
}
