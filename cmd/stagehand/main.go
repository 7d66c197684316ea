// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/stagehand-dev/stagehand/cmd/stagehand/cli"
	"github.com/stagehand-dev/stagehand/cmd/stagehand/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like stop) return an
		// ExitError with the desired exit code. Don't print a
		// redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := cli.NewCommandLogger(false)
	return commands.Root().Execute(context.Background(), os.Args[1:], logger)
}
