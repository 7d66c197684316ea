// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stagehand-dev/stagehand/lib/config"
	"github.com/stagehand-dev/stagehand/lib/installtree"
	"github.com/stagehand-dev/stagehand/lib/probe"
	"github.com/stagehand-dev/stagehand/lib/supervisor"
)

// recorder collects the collaborator calls an operation makes, in
// order, so tests can assert both sequencing and absence of calls.
type recorder struct {
	steps []string
}

func (r *recorder) record(step string) {
	r.steps = append(r.steps, step)
}

type fakeTree struct {
	rec        *recorder
	exists     bool
	replaceErr error
	wipeErr    error
	clearOut   installtree.ClearOutcome
}

func (f *fakeTree) Exists() bool { return f.exists }

func (f *fakeTree) Wipe() error {
	f.rec.record("tree.wipe")
	return f.wipeErr
}

func (f *fakeTree) Replace(context.Context) error {
	f.rec.record("tree.replace")
	return f.replaceErr
}

func (f *fakeTree) ReplacePreservingEnv(context.Context) error {
	f.rec.record("tree.replacePreservingEnv")
	return f.replaceErr
}

func (f *fakeTree) ClearOutputs() (installtree.ClearOutcome, error) {
	f.rec.record("tree.clearOutputs")
	return f.clearOut, nil
}

type fakeSupervisor struct {
	rec           *recorder
	createErr     error
	stopOutcome   supervisor.StopOutcome
	stopErr       error
	removeOutcome supervisor.RemoveOutcome
	removeErr     error
}

func (f *fakeSupervisor) Create(_ context.Context, workingDir, entryPoint, interpreter string) error {
	f.rec.record("supervisor.create")
	return f.createErr
}

func (f *fakeSupervisor) Stop(context.Context) (supervisor.StopOutcome, error) {
	f.rec.record("supervisor.stop")
	return f.stopOutcome, f.stopErr
}

func (f *fakeSupervisor) Remove(context.Context) (supervisor.RemoveOutcome, error) {
	f.rec.record("supervisor.remove")
	return f.removeOutcome, f.removeErr
}

type fakePackageManager struct {
	rec *recorder
	err error
}

func (f *fakePackageManager) Install(_ context.Context, dir string) error {
	f.rec.record("pkg.install")
	return f.err
}

// harness bundles an orchestrator over recording fakes.
type harness struct {
	rec  *recorder
	tree *fakeTree
	sup  *fakeSupervisor
	pkg  *fakePackageManager
	orch *Orchestrator
}

func newHarness(t *testing.T, depsAvailable bool) *harness {
	t.Helper()

	rec := &recorder{}
	h := &harness{
		rec:  rec,
		tree: &fakeTree{rec: rec, exists: true},
		sup:  &fakeSupervisor{rec: rec},
		pkg:  &fakePackageManager{rec: rec},
	}

	cfg := config.Default()
	cfg.Paths.InstallDir = filepath.Join(t.TempDir(), "app")

	h.orch = &Orchestrator{
		Config:         cfg,
		Tree:           h.tree,
		Supervisor:     h.sup,
		PackageManager: h.pkg,
		Probe: func(_ context.Context, names ...string) probe.Report {
			rec.record("probe")
			if depsAvailable {
				return probe.Report{Available: names}
			}
			return probe.Report{Missing: names}
		},
	}
	return h
}

func (h *harness) assertSteps(t *testing.T, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(h.rec.steps, want) {
		t.Errorf("steps = %v, want %v", h.rec.steps, want)
	}
}

func TestInstallSequence(t *testing.T) {
	h := newHarness(t, true)

	if err := h.orch.Install(context.Background()); err != nil {
		t.Fatalf("Install: %v", err)
	}
	// No supervisor call: install does not start the application.
	h.assertSteps(t, "probe", "tree.replace", "pkg.install")
}

func TestInstallAbortsOnFetchFailure(t *testing.T) {
	h := newHarness(t, true)
	h.tree.replaceErr = errors.New("fetch failed")

	if err := h.orch.Install(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	h.assertSteps(t, "probe", "tree.replace")
}

func TestMissingDependencyBlocksAllMutation(t *testing.T) {
	operations := map[string]func(*Orchestrator, context.Context) error{
		"install": (*Orchestrator).Install,
		"start":   (*Orchestrator).Start,
		"update":  (*Orchestrator).Update,
		"uninstall": func(o *Orchestrator, ctx context.Context) error {
			return o.Uninstall(ctx)
		},
		"stop": func(o *Orchestrator, ctx context.Context) error {
			_, err := o.Stop(ctx)
			return err
		},
	}

	for name, operation := range operations {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, false)

			if err := operation(h.orch, context.Background()); err == nil {
				t.Fatal("expected missing-dependency error")
			}
			// The probe ran; nothing else did.
			h.assertSteps(t, "probe")
		})
	}
}

func TestStartSequence(t *testing.T) {
	h := newHarness(t, true)

	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.assertSteps(t, "probe", "supervisor.remove", "supervisor.create")
}

func TestStartFailsFastWithoutInstallDir(t *testing.T) {
	h := newHarness(t, true)
	h.tree.exists = false

	if err := h.orch.Start(context.Background()); err == nil {
		t.Fatal("expected error for missing install dir")
	}
	h.assertSteps(t, "probe")
}

func TestStartToleratesRemoveFailure(t *testing.T) {
	h := newHarness(t, true)
	h.sup.removeOutcome = supervisor.RemoveFailed
	h.sup.removeErr = errors.New("daemon unreachable")

	if err := h.orch.Start(context.Background()); err != nil {
		t.Fatalf("remove failure must not abort start: %v", err)
	}
	h.assertSteps(t, "probe", "supervisor.remove", "supervisor.create")
}

func TestStopOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		outcome supervisor.StopOutcome
		err     error
	}{
		{"stopped", supervisor.Stopped, nil},
		{"was not running", supervisor.WasNotRunning, nil},
		{"real failure", supervisor.StopFailed, errors.New("daemon unreachable")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, true)
			h.sup.stopOutcome = tc.outcome
			h.sup.stopErr = tc.err

			outcome, err := h.orch.Stop(context.Background())
			if err != nil {
				t.Fatalf("stop never escalates supervisor failures: %v", err)
			}
			if outcome != tc.outcome {
				t.Errorf("outcome = %v, want %v", outcome, tc.outcome)
			}
		})
	}
}

func TestUpdateSequence(t *testing.T) {
	h := newHarness(t, true)

	if err := h.orch.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	h.assertSteps(t,
		"probe",
		"supervisor.stop",
		"tree.replacePreservingEnv",
		"pkg.install",
		"supervisor.remove",
		"supervisor.create",
	)
}

func TestUpdateRequiresInstallDir(t *testing.T) {
	h := newHarness(t, true)
	h.tree.exists = false

	if err := h.orch.Update(context.Background()); err == nil {
		t.Fatal("expected error for missing install dir")
	}
	h.assertSteps(t, "probe")
}

func TestUpdateAbortsBeforeCreateOnInstallFailure(t *testing.T) {
	h := newHarness(t, true)
	h.pkg.err = errors.New("npm exploded")

	if err := h.orch.Update(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	h.assertSteps(t, "probe", "supervisor.stop", "tree.replacePreservingEnv", "pkg.install")
}

func TestUninstallSequence(t *testing.T) {
	h := newHarness(t, true)

	if err := h.orch.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	h.assertSteps(t, "probe", "supervisor.remove", "tree.wipe")
}

func TestUninstallToleratesAbsentEntryAndDir(t *testing.T) {
	h := newHarness(t, true)
	h.tree.exists = false
	h.sup.removeOutcome = supervisor.WasNotRegistered

	if err := h.orch.Uninstall(context.Background()); err != nil {
		t.Fatalf("Uninstall on a clean machine should succeed: %v", err)
	}
}

func TestClearOutputsSkipsProbe(t *testing.T) {
	h := newHarness(t, false) // deps unavailable: clear must not care

	outcome, err := h.orch.ClearOutputs()
	if err != nil {
		t.Fatalf("ClearOutputs: %v", err)
	}
	if outcome != installtree.Cleared {
		t.Errorf("outcome = %v", outcome)
	}
	h.assertSteps(t, "tree.clearOutputs")
}

func TestSetupIsInstallThenStart(t *testing.T) {
	h := newHarness(t, true)

	if err := h.orch.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	h.assertSteps(t,
		"probe", "tree.replace", "pkg.install",
		"probe", "supervisor.remove", "supervisor.create",
	)
}
