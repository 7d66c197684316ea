// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration for the stagehand CLI.
//
// Configuration is optional: the built-in defaults describe the real
// deployment (install tree under the invoking user's home directory,
// upstream archive on the default branch). A YAML file can override any
// field and is located by:
//   - the --config flag passed to a command, or
//   - the STAGEHAND_CONFIG environment variable.
//
// There is no search-path discovery. After the file is applied,
// individual fields can be overridden through STAGEHAND_* environment
// variables (see the envconfig tags below); this keeps tests and
// one-off operator invocations from needing a file at all.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix for environment-variable overrides
// (STAGEHAND_APP_NAME, STAGEHAND_ARCHIVE_URL, ...).
const envPrefix = "stagehand"

// ConfigPathEnv names the environment variable holding the config file
// path when --config is not given.
const ConfigPathEnv = "STAGEHAND_CONFIG"

// Config describes the one application this tool deploys and
// supervises. It is injected into the lifecycle orchestrator at
// construction; nothing in lib/ reads ambient globals.
type Config struct {
	// App identifies the managed application and how it is launched.
	App AppConfig `yaml:"app"`

	// Archive is the upstream source archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Paths configures the local install tree.
	Paths PathsConfig `yaml:"paths"`

	// Tools names the external executables this tool drives.
	Tools ToolsConfig `yaml:"tools"`
}

// AppConfig identifies the managed application.
type AppConfig struct {
	// Name is the supervisor registration name. At most one supervised
	// entry with this name exists at any time.
	Name string `yaml:"name" envconfig:"STAGEHAND_APP_NAME"`

	// EntryPoint is the file the supervisor launches, relative to the
	// install directory.
	EntryPoint string `yaml:"entry_point" envconfig:"STAGEHAND_ENTRY_POINT"`

	// Interpreter is the runtime passed to the supervisor explicitly.
	// Supervisor entries pin the interpreter at creation time and
	// cannot be reconfigured in place, so this is always passed rather
	// than relying on file-extension auto-detection.
	Interpreter string `yaml:"interpreter" envconfig:"STAGEHAND_INTERPRETER"`
}

// ArchiveConfig is the upstream source archive.
type ArchiveConfig struct {
	// URL serves a gzip-compressed tarball of the application's
	// default branch. The archive's single top-level folder is
	// stripped on extraction.
	URL string `yaml:"url" envconfig:"STAGEHAND_ARCHIVE_URL"`
}

// PathsConfig configures the local install tree.
type PathsConfig struct {
	// InstallDir is the absolute path of the install directory. The
	// directory is created by install, wholesale-replaced by update,
	// and destroyed by uninstall.
	InstallDir string `yaml:"install_dir" envconfig:"STAGEHAND_INSTALL_DIR"`

	// EnvFile is the path of the environment file, relative to
	// InstallDir. Its content is opaque and survives update.
	EnvFile string `yaml:"env_file" envconfig:"STAGEHAND_ENV_FILE"`

	// OutputsDir is the name of the generated-artifacts subdirectory
	// of InstallDir, clearable with the clear command.
	OutputsDir string `yaml:"outputs_dir" envconfig:"STAGEHAND_OUTPUTS_DIR"`
}

// ToolsConfig names the external executables this tool drives. Both are
// resolved through PATH at invocation time.
type ToolsConfig struct {
	// PackageManager installs the application's dependencies
	// ("<package_manager> install" in the install directory).
	PackageManager string `yaml:"package_manager" envconfig:"STAGEHAND_PACKAGE_MANAGER"`

	// Supervisor is the process manager ("<supervisor> start/stop/delete").
	Supervisor string `yaml:"supervisor" envconfig:"STAGEHAND_SUPERVISOR"`
}

// Default returns the configuration for the real deployment. Every
// field is populated so a missing config file is not an error.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		App: AppConfig{
			Name:        "stagehand-server",
			EntryPoint:  "server.js",
			Interpreter: "node",
		},
		Archive: ArchiveConfig{
			URL: "https://codeload.github.com/stagehand-dev/stagehand-server/tar.gz/refs/heads/main",
		},
		Paths: PathsConfig{
			InstallDir: filepath.Join(homeDir, ".stagehand", "app"),
			EnvFile:    ".env",
			OutputsDir: "outputs",
		},
		Tools: ToolsConfig{
			PackageManager: "npm",
			Supervisor:     "pm2",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (or $STAGEHAND_CONFIG when path is empty; no file at all is
// fine), then STAGEHAND_* environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that later stages assume. It is exported
// so tests constructing Config literals can share the checks.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("config: app.name must not be empty")
	}
	if c.App.EntryPoint == "" {
		return fmt.Errorf("config: app.entry_point must not be empty")
	}
	if c.App.Interpreter == "" {
		return fmt.Errorf("config: app.interpreter must not be empty")
	}

	parsed, err := url.Parse(c.Archive.URL)
	if err != nil {
		return fmt.Errorf("config: archive.url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("config: archive.url must be an HTTP(S) URL, got %q", c.Archive.URL)
	}

	if !filepath.IsAbs(c.Paths.InstallDir) {
		return fmt.Errorf("config: paths.install_dir must be absolute, got %q", c.Paths.InstallDir)
	}
	if filepath.IsAbs(c.Paths.EnvFile) {
		return fmt.Errorf("config: paths.env_file must be relative to the install dir, got %q", c.Paths.EnvFile)
	}
	if rel := filepath.Clean(c.Paths.EnvFile); rel == ".." || strings.HasPrefix(rel, "../") {
		return fmt.Errorf("config: paths.env_file must not escape the install dir, got %q", c.Paths.EnvFile)
	}
	if c.Paths.OutputsDir == "" || filepath.IsAbs(c.Paths.OutputsDir) {
		return fmt.Errorf("config: paths.outputs_dir must be a relative name, got %q", c.Paths.OutputsDir)
	}

	if c.Tools.PackageManager == "" {
		return fmt.Errorf("config: tools.package_manager must not be empty")
	}
	if c.Tools.Supervisor == "" {
		return fmt.Errorf("config: tools.supervisor must not be empty")
	}
	return nil
}

// EnvFilePath returns the absolute path of the environment file.
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.Paths.InstallDir, c.Paths.EnvFile)
}

// OutputsPath returns the absolute path of the outputs subdirectory.
func (c *Config) OutputsPath() string {
	return filepath.Join(c.Paths.InstallDir, c.Paths.OutputsDir)
}
