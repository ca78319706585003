package main

import (
	"fmt"
	"os"

	"github.com/tphakala/birdfeeder-go/cmd"
	"github.com/tphakala/birdfeeder-go/internal/conf"
)

func main() {
	// Load the configuration, defaults cover a missing config file
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
