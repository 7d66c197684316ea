// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the stagehand CLI:
// command dispatch with typo suggestions, pflag-based flag parsing,
// structured help output, exit-code plumbing, logger construction,
// and styled result lines.
package cli
