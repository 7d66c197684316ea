// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe checks that the external executables stagehand drives
// are present and invocable. Every lifecycle operation runs a probe
// before touching the filesystem or the supervisor, so a missing tool
// never leaves a half-changed install behind.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// versionArg is the trivial invocation used to classify an executable
// as available. The tools stagehand cares about (npm, pm2, node) all
// support it; the output itself is discarded.
const versionArg = "--version"

// Report is the outcome of probing a set of executables.
type Report struct {
	// Available lists the probed names that completed a version query
	// without error, in probe order.
	Available []string

	// Missing lists the probed names that could not be invoked, in
	// probe order.
	Missing []string
}

// Err returns nil when every probed executable is available, otherwise
// an error naming exactly the missing ones. Lifecycle operations treat
// this as their precondition gate.
func (r Report) Err() error {
	if len(r.Missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required executables: %s", strings.Join(r.Missing, ", "))
}

// Run probes each named executable by attempting a version query. An
// executable is available iff the invocation completes without error,
// regardless of what it prints. Run has no side effects.
func Run(ctx context.Context, names ...string) Report {
	var report Report
	for _, name := range names {
		command := exec.CommandContext(ctx, name, versionArg)
		command.Stdout = nil
		command.Stderr = nil
		if err := command.Run(); err != nil {
			report.Missing = append(report.Missing, name)
			continue
		}
		report.Available = append(report.Available, name)
	}
	return report
}
