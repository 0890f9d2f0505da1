package main

import (
	"os"

	"github.com/quantfeed/pulse/cmd/pulse/commands"
)

// main is the entry point for the pulse CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
