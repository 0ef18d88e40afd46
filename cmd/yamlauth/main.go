package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/marmos91/yamlauth/cmd/yamlauth/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		// A denied check already printed its verdict.
		if !errors.Is(err, commands.ErrDenied) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
