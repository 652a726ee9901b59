package main

import (
	"os"

	"github.com/devzero-inc/selfhost-cli/internal/cli"
	"github.com/devzero-inc/selfhost-cli/internal/logging"
)

// main is the entry point for the selfhost-cli binary.
func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
