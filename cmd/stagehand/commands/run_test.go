// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"archive/tar"
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/stagehand-dev/stagehand/lib/config"
)

// tarball builds a one-folder gzip tarball like the upstream codeload
// endpoint serves.
func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)
	for name, content := range files {
		header := &tar.Header{
			Name: "stagehand-server-main/" + name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		if _, err := tarWriter.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tarWriter.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// writeTool creates a stub external tool that appends its arguments to
// logFile and then behaves per the script body.
func writeTool(t *testing.T, binDir, name, logFile, body string) {
	t.Helper()
	script := "#!/bin/sh\necho \"$@\" >> " + logFile + "\n" + body
	if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
}

// env prepares an isolated deployment environment: archive server,
// stub tools on PATH, and STAGEHAND_* overrides pointing at temp
// directories. It returns the install dir and the tool call logs.
func env(t *testing.T) (installDir, pm2Log, npmLog string) {
	t.Helper()

	archive := tarball(t, map[string]string{
		"server.js":    "require('./lib')\n",
		"package.json": "{\"name\": \"stagehand-server\"}\n",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	t.Cleanup(server.Close)

	binDir := t.TempDir()
	logDir := t.TempDir()
	pm2Log = filepath.Join(logDir, "pm2.log")
	npmLog = filepath.Join(logDir, "npm.log")

	// pm2 stub: version probe succeeds, delete/stop answer not-found,
	// start succeeds.
	writeTool(t, binDir, "pm2", pm2Log, `case "$1" in
  delete|stop) echo "[PM2][ERROR] Process or Namespace stagehand-server not found" >&2; exit 1;;
esac
exit 0
`)
	writeTool(t, binDir, "npm", npmLog, "exit 0\n")

	installDir = filepath.Join(t.TempDir(), "app")
	t.Setenv("PATH", binDir)
	t.Setenv(config.ConfigPathEnv, "")
	t.Setenv("STAGEHAND_ARCHIVE_URL", server.URL)
	t.Setenv("STAGEHAND_INSTALL_DIR", installDir)
	return installDir, pm2Log, npmLog
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return Root().Execute(context.Background(), args, logger)
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatal(err)
	}
	return string(content)
}

func TestCommandsEndToEnd(t *testing.T) {
	installDir, pm2Log, npmLog := env(t)

	// install: tree populated, dependencies installed, no pm2 start.
	if err := execute(t, "install"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(installDir, "server.js")); err != nil {
		t.Fatalf("install should extract the tree: %v", err)
	}
	if !strings.Contains(readLog(t, npmLog), "install") {
		t.Error("install should run the package manager")
	}
	if strings.Contains(readLog(t, pm2Log), "start ") {
		t.Error("install must not start the application")
	}

	// start: stale delete attempted (soft), then an explicit launch
	// configuration.
	if err := execute(t, "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	pm2Calls := readLog(t, pm2Log)
	if !strings.Contains(pm2Calls, "delete stagehand-server") {
		t.Error("start should remove a stale entry first")
	}
	for _, want := range []string{
		"start server.js",
		"--name stagehand-server",
		"--interpreter node",
		"--cwd " + installDir,
	} {
		if !strings.Contains(pm2Calls, want) {
			t.Errorf("pm2 calls %q should contain %q", pm2Calls, want)
		}
	}

	// update: the env file survives the tree replacement.
	secret := []byte("SECRET=keepme\n")
	if err := os.WriteFile(filepath.Join(installDir, ".env"), secret, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, "update"); err != nil {
		t.Fatalf("update: %v", err)
	}
	restored, err := os.ReadFile(filepath.Join(installDir, ".env"))
	if err != nil {
		t.Fatalf("env file should survive update: %v", err)
	}
	if !bytes.Equal(restored, secret) {
		t.Errorf("env content = %q, want %q", restored, secret)
	}

	// stop: the stub answers not-found; that is a handled outcome.
	if err := execute(t, "stop"); err != nil {
		t.Fatalf("stop on a not-running app must succeed: %v", err)
	}

	// clear without an outputs directory: informational no-op.
	if err := execute(t, "clear"); err != nil {
		t.Fatalf("clear with no outputs dir: %v", err)
	}

	// clear with outputs: children removed, directory kept.
	outputs := filepath.Join(installDir, "outputs")
	if err := os.MkdirAll(outputs, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outputs, "artifact.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(outputs)
	if err != nil {
		t.Fatalf("outputs dir must remain: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("outputs should be empty, has %d entries", len(entries))
	}

	// uninstall: tree gone.
	if err := execute(t, "uninstall"); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if _, err := os.Stat(installDir); !os.IsNotExist(err) {
		t.Error("install dir should be gone after uninstall")
	}
}

func TestStartWithoutInstallFailsFast(t *testing.T) {
	_, pm2Log, _ := env(t)

	err := execute(t, "start")
	if err == nil {
		t.Fatal("start without an install must fail")
	}
	if !strings.Contains(err.Error(), "install") {
		t.Errorf("error %q should point the operator at install", err)
	}
	if strings.Contains(readLog(t, pm2Log), "start ") {
		t.Error("no supervisor launch may happen without an install")
	}
}

func TestMissingToolsBlockInstall(t *testing.T) {
	installDir, _, _ := env(t)

	// Empty PATH: no pm2, no npm.
	t.Setenv("PATH", t.TempDir())

	err := execute(t, "install")
	if err == nil {
		t.Fatal("install without tools must fail")
	}
	for _, name := range []string{"npm", "pm2"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q should name missing tool %q", err, name)
		}
	}
	if _, statErr := os.Stat(installDir); !os.IsNotExist(statErr) {
		t.Error("no filesystem mutation may happen when tools are missing")
	}
}
