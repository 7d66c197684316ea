// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle sequences the deployment operations for the one
// managed application: install, start, stop, update, uninstall, and
// outputs-clearing.
//
// Each operation is a fixed, sequential pipeline over four
// collaborators — the dependency probe, the install-tree manager, the
// package manager, and the process supervisor — with early abort on
// fatal failure. Three orderings are load-bearing:
//
//   - the dependency probe precedes any mutation, so a missing
//     external tool never leaves the system half-changed;
//   - the environment file is captured before the tree is destroyed
//     during update, because destruction is irreversible;
//   - the supervisor entry is removed before it is re-created, because
//     the supervisor cannot reconfigure an entry's interpreter or
//     working directory in place.
//
// There is no retry, no rollback, and no locking: a failed operation
// may leave the install directory absent or partially populated, and
// that state is reported to the operator rather than hidden. The
// orchestrator assumes it is the only actor on the install directory
// and the supervisor entry.
package lifecycle
