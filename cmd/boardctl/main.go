package main

import (
	"os"

	"github.com/inamate/whiteboard/cmd/boardctl/commands"
)

var version = "dev"

func main() {
	// Errors are printed by the printer package.
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
