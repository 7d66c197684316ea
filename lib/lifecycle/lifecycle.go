// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stagehand-dev/stagehand/lib/archive"
	"github.com/stagehand-dev/stagehand/lib/config"
	"github.com/stagehand-dev/stagehand/lib/installtree"
	"github.com/stagehand-dev/stagehand/lib/pkgmgr"
	"github.com/stagehand-dev/stagehand/lib/probe"
	"github.com/stagehand-dev/stagehand/lib/supervisor"
)

// Tree is the install-tree surface the orchestrator drives.
// Implemented by installtree.Manager.
type Tree interface {
	Exists() bool
	Wipe() error
	Replace(ctx context.Context) error
	ReplacePreservingEnv(ctx context.Context) error
	ClearOutputs() (installtree.ClearOutcome, error)
}

// Supervisor is the process-manager surface the orchestrator drives.
// Implemented by supervisor.Client.
type Supervisor interface {
	Create(ctx context.Context, workingDir, entryPoint, interpreter string) error
	Stop(ctx context.Context) (supervisor.StopOutcome, error)
	Remove(ctx context.Context) (supervisor.RemoveOutcome, error)
}

// PackageManager installs the application's dependencies in a tree.
// Implemented by pkgmgr.Runner.
type PackageManager interface {
	Install(ctx context.Context, dir string) error
}

// ProbeFunc checks executable availability. Defaults to probe.Run.
type ProbeFunc func(ctx context.Context, names ...string) probe.Report

// Orchestrator sequences the lifecycle operations. Each operation is a
// fixed sequence with early abort on fatal failure; the dependency
// probe always precedes the first mutation, so a missing tool never
// leaves a half-changed install behind.
type Orchestrator struct {
	// Config describes the managed application. Required.
	Config *config.Config

	// Tree, Supervisor, and PackageManager are the collaborators. New
	// wires the real ones; tests substitute fakes.
	Tree           Tree
	Supervisor     Supervisor
	PackageManager PackageManager

	// Probe gates operations on external-tool availability. Defaults
	// to probe.Run.
	Probe ProbeFunc

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// New builds an Orchestrator wired to the real collaborators.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	fetcher := &archive.Fetcher{Client: http.DefaultClient, Logger: logger}
	return &Orchestrator{
		Config: cfg,
		Tree: &installtree.Manager{
			Dir:        cfg.Paths.InstallDir,
			ArchiveURL: cfg.Archive.URL,
			EnvFile:    cfg.Paths.EnvFile,
			OutputsDir: cfg.Paths.OutputsDir,
			Fetcher:    fetcher,
			Logger:     logger,
		},
		Supervisor: &supervisor.Client{
			Executable: cfg.Tools.Supervisor,
			Name:       cfg.App.Name,
			Logger:     logger,
		},
		PackageManager: &pkgmgr.Runner{
			Executable: cfg.Tools.PackageManager,
			Logger:     logger,
		},
		Probe:  probe.Run,
		Logger: logger,
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) probeFunc() ProbeFunc {
	if o.Probe != nil {
		return o.Probe
	}
	return probe.Run
}

// gate probes the required executables and fails the operation before
// any mutation when one is missing.
func (o *Orchestrator) gate(ctx context.Context) error {
	report := o.probeFunc()(ctx, o.Config.Tools.PackageManager, o.Config.Tools.Supervisor)
	return report.Err()
}

// requireTree fails fast when the install directory does not exist.
func (o *Orchestrator) requireTree() error {
	if !o.Tree.Exists() {
		return fmt.Errorf("%s is not installed (no install directory at %s); run install first",
			o.Config.App.Name, o.Config.Paths.InstallDir)
	}
	return nil
}

// removeStaleEntry deletes any existing supervisor entry before a
// create. The entry's launch configuration cannot be changed in place,
// so the transition is forced through "absent". Failures other than
// "not registered" are non-fatal but logged: the create that follows
// may then fail for a different reason, and this context helps.
func (o *Orchestrator) removeStaleEntry(ctx context.Context) {
	outcome, err := o.Supervisor.Remove(ctx)
	switch outcome {
	case supervisor.Removed:
		o.logger().Info("removed existing supervisor entry", "name", o.Config.App.Name)
	case supervisor.WasNotRegistered:
		o.logger().Debug("no supervisor entry to remove", "name", o.Config.App.Name)
	case supervisor.RemoveFailed:
		o.logger().Warn("could not remove supervisor entry", "name", o.Config.App.Name, "error", err)
	}
}

// Install fetches the application and installs its dependencies. Any
// existing install directory is replaced wholesale. No supervisor
// entry is created; that is start's job.
func (o *Orchestrator) Install(ctx context.Context) error {
	if err := o.gate(ctx); err != nil {
		return err
	}
	o.logger().Info("installing", "app", o.Config.App.Name, "dir", o.Config.Paths.InstallDir)

	if err := o.Tree.Replace(ctx); err != nil {
		return err
	}
	if err := o.PackageManager.Install(ctx, o.Config.Paths.InstallDir); err != nil {
		return err
	}

	o.logger().Info("installed", "app", o.Config.App.Name)
	return nil
}

// Start registers and launches the application under the supervisor.
// A stale entry from a previous configuration is removed first.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.gate(ctx); err != nil {
		return err
	}
	if err := o.requireTree(); err != nil {
		return err
	}

	o.removeStaleEntry(ctx)

	return o.Supervisor.Create(ctx,
		o.Config.Paths.InstallDir, o.Config.App.EntryPoint, o.Config.App.Interpreter)
}

// Stop asks the supervisor to stop the application. Both "stopped"
// and "wasn't running" are successful outcomes; a real supervisor
// failure is reported in the outcome and logged, never escalated —
// there is nothing after this step to protect.
func (o *Orchestrator) Stop(ctx context.Context) (supervisor.StopOutcome, error) {
	if err := o.gate(ctx); err != nil {
		return supervisor.StopFailed, err
	}

	outcome, err := o.Supervisor.Stop(ctx)
	switch outcome {
	case supervisor.Stopped:
		o.logger().Info("stopped", "app", o.Config.App.Name)
	case supervisor.WasNotRunning:
		o.logger().Info("was not running", "app", o.Config.App.Name)
	case supervisor.StopFailed:
		o.logger().Warn("stop failed", "app", o.Config.App.Name, "error", err)
	}
	return outcome, nil
}

// Update replaces the install tree with the latest upstream archive,
// carrying the environment file across, reinstalls dependencies, and
// relaunches under the supervisor. The sequence is strictly ordered:
// the environment file is captured before the tree is destroyed, and
// the stale supervisor entry is removed before the new one is created.
func (o *Orchestrator) Update(ctx context.Context) error {
	if err := o.gate(ctx); err != nil {
		return err
	}
	if err := o.requireTree(); err != nil {
		return err
	}
	o.logger().Info("updating", "app", o.Config.App.Name)

	if outcome, err := o.Supervisor.Stop(ctx); outcome == supervisor.StopFailed {
		o.logger().Warn("could not stop before update", "app", o.Config.App.Name, "error", err)
	}

	if err := o.Tree.ReplacePreservingEnv(ctx); err != nil {
		return err
	}
	if err := o.PackageManager.Install(ctx, o.Config.Paths.InstallDir); err != nil {
		return err
	}

	o.removeStaleEntry(ctx)
	if err := o.Supervisor.Create(ctx,
		o.Config.Paths.InstallDir, o.Config.App.EntryPoint, o.Config.App.Interpreter); err != nil {
		return err
	}

	o.logger().Info("updated", "app", o.Config.App.Name)
	return nil
}

// Uninstall removes the supervisor entry and the install directory.
// Absence of either is fine; uninstalling something never installed
// succeeds.
func (o *Orchestrator) Uninstall(ctx context.Context) error {
	if err := o.gate(ctx); err != nil {
		return err
	}

	o.removeStaleEntry(ctx)

	if err := o.Tree.Wipe(); err != nil {
		return err
	}
	o.logger().Info("uninstalled", "app", o.Config.App.Name)
	return nil
}

// ClearOutputs removes generated artifacts from the outputs
// subdirectory, leaving the directory itself and the rest of the tree
// untouched. It needs no external tools, so there is no probe gate.
func (o *Orchestrator) ClearOutputs() (installtree.ClearOutcome, error) {
	return o.Tree.ClearOutputs()
}

// Setup is install followed by start: the one-command path for a
// fresh machine.
func (o *Orchestrator) Setup(ctx context.Context) error {
	if err := o.Install(ctx); err != nil {
		return err
	}
	return o.Start(ctx)
}
