package main

import (
	"fmt"
	"os"

	"github.com/eleven-am/katas/internal/cli"
	"github.com/eleven-am/katas/internal/logger"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func Execute() error {
	defer func() { _ = logger.Default().Sync() }()

	cmd := cli.NewRootCommand()
	return cmd.Execute()
}
