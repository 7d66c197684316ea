// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package pkgmgr runs the application's package manager (npm by
// default) inside the install tree. The package manager is a black
// box: stagehand only cares that "<tool> install" exits zero.
package pkgmgr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner invokes the package manager.
type Runner struct {
	// Executable is the package manager binary, resolved through PATH.
	Executable string

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Install runs "<executable> install" with the working directory set
// to dir. A non-zero exit is fatal to the enclosing lifecycle
// operation; stderr is folded into the error since that is where
// package managers write their diagnostics.
func (r *Runner) Install(ctx context.Context, dir string) error {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, r.Executable, "install")
	command.Dir = dir
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		if stderrText != "" {
			return fmt.Errorf("%s install in %s: %s", r.Executable, dir, stderrText)
		}
		return fmt.Errorf("%s install in %s: %w", r.Executable, dir, err)
	}

	r.logger().Info("dependencies installed", "tool", r.Executable, "dir", dir)
	return nil
}
