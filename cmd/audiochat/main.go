package main

import (
	"os"

	"github.com/chanderlud/audio-chat/cmd/audiochat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
