// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Result-line styles. lipgloss downgrades to plain text on its own
// when stdout is not a terminal, so these are safe for pipes and CI.
var (
	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true).Render("✓")
	warnMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true).Render("!")
	failMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true).Render("✗")
)

// Successf prints a success result line to stdout.
func Successf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "%s %s\n", successMark, fmt.Sprintf(format, args...))
}

// Warnf prints a warning result line to stdout. Used for soft
// outcomes: expected, non-fatal conditions the operator should still
// see (e.g., stopping an application that wasn't running).
func Warnf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "%s %s\n", warnMark, fmt.Sprintf(format, args...))
}

// Failf prints a failure result line to stdout. Commands that print
// their own failure line return an ExitError instead of the raw error
// so main does not print it again.
func Failf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, "%s %s\n", failMark, fmt.Sprintf(format, args...))
}
