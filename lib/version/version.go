// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the stagehand build version.
package version

// version is the build version, overridden at link time:
//
//	go build -ldflags "-X github.com/stagehand-dev/stagehand/lib/version.version=v1.2.3"
var version = "dev"

// String returns the build version.
func String() string {
	return version
}
