package commands

import (
	"fmt"
	"os"

	"github.com/chanderlud/audio-chat/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	home       string
	passphrase string
	logFormat  string
	logLevel   string

	cfg config.Config
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "audiochat",
		Short:         "Peer-to-peer encrypted voice calls",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := config.DefaultDataDir()
				if err != nil {
					return err
				}
				home = dir
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			loaded, err := config.Load(home)
			if err != nil {
				return err
			}
			cfg = loaded
			return configureLogging(cfg)
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data directory (default <user config dir>/audio-chat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the SQLite contact store")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(serveCmd(), contactCmd(), secretCmd(), configCmd())
	return root
}

func configureLogging(cfg config.Config) error {
	switch logFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}

	level := cfg.Level()
	if logLevel != "" {
		parsed, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	logrus.SetLevel(level)
	return nil
}
