package main

import (
	"os"

	"github.com/soypat/gpix/cmd/gpix/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
