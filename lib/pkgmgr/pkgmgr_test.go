// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package pkgmgr

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "npm")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestInstallRunsInTree(t *testing.T) {
	cwdFile := filepath.Join(t.TempDir(), "cwd")
	executable := writeStub(t, `[ "$1" = install ] || exit 2`+"\npwd > "+cwdFile+"\nexit 0\n")
	dir := t.TempDir()

	runner := &Runner{Executable: executable}
	if err := runner.Install(context.Background(), dir); err != nil {
		t.Fatalf("Install: %v", err)
	}

	recorded, err := os.ReadFile(cwdFile)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.TrimSpace(string(recorded))
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if gotResolved, err := filepath.EvalSymlinks(got); err != nil || gotResolved != want {
		t.Errorf("package manager ran in %q, want %q", got, dir)
	}
}

func TestInstallNonZeroExitIsFatal(t *testing.T) {
	executable := writeStub(t, `echo "npm ERR! code ERESOLVE" >&2`+"\nexit 1\n")

	runner := &Runner{Executable: executable}
	err := runner.Install(context.Background(), t.TempDir())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ERESOLVE") {
		t.Errorf("error %q should carry the package manager's stderr", err)
	}
}

func TestInstallMissingExecutable(t *testing.T) {
	runner := &Runner{Executable: filepath.Join(t.TempDir(), "no-such-tool")}
	if err := runner.Install(context.Background(), t.TempDir()); err == nil {
		t.Fatal("expected error for missing executable")
	}
}
