// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package installtree owns the on-disk install directory: clean-slate
// replacement from the upstream archive, preservation of the operator's
// environment file across replacement, and removal.
//
// The invariant maintained across successful operations: the install
// directory is either absent or holds a fully-extracted tree. A failed
// operation may leave it absent or partially populated; that risk is
// surfaced to the operator, not rolled back.
package installtree

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Fetcher populates a directory from the upstream archive. Implemented
// by lib/archive.Fetcher; faked in tests.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) error
}

// ClearOutcome tags the result of ClearOutputs.
type ClearOutcome int

const (
	// Cleared means the outputs directory existed and its children
	// were removed.
	Cleared ClearOutcome = iota

	// NoOutputsDir means the outputs directory did not exist; nothing
	// was done. An informational outcome, not an error.
	NoOutputsDir
)

// Manager performs install-tree operations for one fixed directory.
type Manager struct {
	// Dir is the absolute install directory path.
	Dir string

	// ArchiveURL is the upstream archive handed to the Fetcher.
	ArchiveURL string

	// EnvFile is the environment file path relative to Dir. Content is
	// opaque; it is never parsed.
	EnvFile string

	// OutputsDir is the generated-artifacts subdirectory name,
	// relative to Dir.
	OutputsDir string

	// Fetcher retrieves and extracts the archive.
	Fetcher Fetcher

	// Logger is used for structured logging. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Exists reports whether the install directory is present.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.Dir)
	return err == nil && info.IsDir()
}

// Wipe removes the install directory recursively. Wiping an absent
// directory is a no-op, not an error.
func (m *Manager) Wipe() error {
	if err := os.RemoveAll(m.Dir); err != nil {
		return fmt.Errorf("remove %s: %w", m.Dir, err)
	}
	return nil
}

// Replace installs a fresh tree: any existing directory is removed
// entirely, then the Fetcher populates it from the archive.
func (m *Manager) Replace(ctx context.Context) error {
	if err := m.Wipe(); err != nil {
		return err
	}
	return m.Fetcher.Fetch(ctx, m.ArchiveURL, m.Dir)
}

// ReplacePreservingEnv replaces the tree while carrying the environment
// file across. The order is load-bearing: capture before destroy
// (destroy is irreversible), restore after repopulate. An absent env
// file is remembered as absent and none is created afterwards.
func (m *Manager) ReplacePreservingEnv(ctx context.Context) error {
	envPath := filepath.Join(m.Dir, m.EnvFile)

	content, mode, err := captureFile(envPath)
	if err != nil {
		return fmt.Errorf("capture %s: %w", envPath, err)
	}

	// Remove every entry inside the directory rather than the
	// directory itself, so its permissions are untouched.
	if err := removeChildren(m.Dir); err != nil {
		return err
	}

	if err := m.Fetcher.Fetch(ctx, m.ArchiveURL, m.Dir); err != nil {
		return err
	}

	if content != nil {
		if err := os.MkdirAll(filepath.Dir(envPath), 0o755); err != nil {
			return fmt.Errorf("restore %s: %w", envPath, err)
		}
		if err := renameio.WriteFile(envPath, content, mode); err != nil {
			return fmt.Errorf("restore %s: %w", envPath, err)
		}
		m.logger().Info("environment file preserved", "path", envPath)
	}
	return nil
}

// ClearOutputs removes every direct child of the outputs subdirectory,
// leaving the directory itself present and empty. An absent outputs
// directory yields NoOutputsDir.
func (m *Manager) ClearOutputs() (ClearOutcome, error) {
	outputsPath := filepath.Join(m.Dir, m.OutputsDir)

	entries, err := os.ReadDir(outputsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NoOutputsDir, nil
		}
		return NoOutputsDir, fmt.Errorf("read %s: %w", outputsPath, err)
	}

	for _, entry := range entries {
		child := filepath.Join(outputsPath, entry.Name())
		if err := os.RemoveAll(child); err != nil {
			return Cleared, fmt.Errorf("remove %s: %w", child, err)
		}
	}
	return Cleared, nil
}

// captureFile reads a file's content and permission bits. A missing
// file returns (nil, 0, nil).
func captureFile(path string) ([]byte, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return content, info.Mode().Perm(), nil
}

// removeChildren deletes every entry inside dir, keeping dir itself.
// An absent dir is fine; the subsequent fetch creates it.
func removeChildren(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, entry := range entries {
		child := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(child); err != nil {
			return fmt.Errorf("remove %s: %w", child, err)
		}
	}
	return nil
}
