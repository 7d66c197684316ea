// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor translates lifecycle intents into invocations of
// the external process manager (pm2 by default), addressed by the
// application's fixed registration name.
//
// The supervisor's own state machine for an entry is
// absent → running → stopped → absent; entries pin their launch
// configuration (interpreter, cwd) at creation and cannot be
// reconfigured in place, which is why the orchestrator always deletes
// before re-creating. "Entry not found" and "not running" answers are
// expected outcomes here, not errors — the tagged outcome types let
// callers and tests tell the three cases apart instead of collapsing
// them.
package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// StopOutcome tags the result of Stop.
type StopOutcome int

const (
	// Stopped means the supervisor acknowledged the stop.
	Stopped StopOutcome = iota

	// WasNotRunning means the entry was not running or not registered;
	// an expected soft outcome.
	WasNotRunning

	// StopFailed means the supervisor answered with a real error,
	// carried alongside as the error return.
	StopFailed
)

// RemoveOutcome tags the result of Remove.
type RemoveOutcome int

const (
	// Removed means the entry was deleted.
	Removed RemoveOutcome = iota

	// WasNotRegistered means no entry with the name existed; an
	// expected soft outcome.
	WasNotRegistered

	// RemoveFailed means the supervisor answered with a real error.
	// Callers treat it as non-fatal but the anomaly is worth a
	// warning: the create that usually follows may now fail for a
	// reason that is easier to diagnose with this context.
	RemoveFailed
)

// notFoundMarkers are stderr fragments the process manager prints when
// asked about an entry it does not know. pm2 answers
// "[PM2][ERROR] Process or Namespace <name> not found".
var notFoundMarkers = []string{
	"not found",
	"doesn't exist",
	"does not exist",
}

// Client drives one named supervised process entry through the
// external process manager.
type Client struct {
	// Executable is the process manager binary, resolved through PATH.
	Executable string

	// Name is the supervisor registration name for the application.
	Name string

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Create registers and launches the entry: working directory,
// entry-point file, and runtime interpreter are all passed explicitly.
// The interpreter is never left to the supervisor's file-extension
// auto-detection, because a previous registration may have pinned an
// incompatible launcher. Failure is fatal to the enclosing operation.
func (c *Client) Create(ctx context.Context, workingDir, entryPoint, interpreter string) error {
	args := []string{
		"start", entryPoint,
		"--name", c.Name,
		"--interpreter", interpreter,
		"--cwd", workingDir,
	}
	if stderr, err := c.run(ctx, workingDir, args); err != nil {
		return formatError(c.Executable, args, stderr, err)
	}
	c.logger().Info("supervisor entry created",
		"name", c.Name, "entry_point", entryPoint, "interpreter", interpreter)
	return nil
}

// Stop asks the supervisor to stop the entry. "Not running" and "not
// registered" are soft outcomes, not errors.
func (c *Client) Stop(ctx context.Context) (StopOutcome, error) {
	args := []string{"stop", c.Name}
	stderr, err := c.run(ctx, "", args)
	if err == nil {
		return Stopped, nil
	}
	if isNotFound(stderr) {
		return WasNotRunning, nil
	}
	return StopFailed, formatError(c.Executable, args, stderr, err)
}

// Remove asks the supervisor to delete the entry. An entry that does
// not exist is a success-equivalent outcome. Any other failure is
// reported for the caller to log; it is never fatal on its own.
func (c *Client) Remove(ctx context.Context) (RemoveOutcome, error) {
	args := []string{"delete", c.Name}
	stderr, err := c.run(ctx, "", args)
	if err == nil {
		return Removed, nil
	}
	if isNotFound(stderr) {
		return WasNotRegistered, nil
	}
	return RemoveFailed, formatError(c.Executable, args, stderr, err)
}

// run executes the supervisor binary. pm2 writes its diagnostics to
// stderr; stderr is returned so callers can classify soft failures
// before formatting an error. Stdout is discarded.
func (c *Client) run(ctx context.Context, workingDir string, args []string) (*bytes.Buffer, error) {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.Executable, args...)
	command.Stderr = &stderr
	if workingDir != "" {
		command.Dir = workingDir
	}

	err := command.Run()
	return &stderr, err
}

// isNotFound reports whether stderr indicates the supervisor does not
// know the entry.
func isNotFound(stderr *bytes.Buffer) bool {
	text := strings.ToLower(stderr.String())
	for _, marker := range notFoundMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// formatError produces an error for a failed supervisor command,
// preferring stderr (which carries the actual diagnostic) over the
// generic exec error.
func formatError(executable string, args []string, stderr *bytes.Buffer, err error) error {
	commandString := executable + " " + strings.Join(args, " ")
	stderrText := strings.TrimSpace(stderr.String())
	if stderrText != "" {
		return fmt.Errorf("%s: %s", commandString, stderrText)
	}
	return fmt.Errorf("%s: %w", commandString, err)
}
