// Copyright 2026 The Stagehand Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the stagehand CLI command tree. Every
// lifecycle command follows the same shape: load configuration,
// construct the orchestrator, run one operation, print a result line.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/stagehand-dev/stagehand/cmd/stagehand/cli"
	"github.com/stagehand-dev/stagehand/lib/config"
	"github.com/stagehand-dev/stagehand/lib/installtree"
	"github.com/stagehand-dev/stagehand/lib/lifecycle"
	"github.com/stagehand-dev/stagehand/lib/supervisor"
	"github.com/stagehand-dev/stagehand/lib/version"
)

// params holds the flags shared by every lifecycle command.
type params struct {
	configPath string
	verbose    bool
}

// flags returns a FlagSet for a lifecycle command.
func (p *params) flags(name string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		flagSet.StringVar(&p.configPath, "config", "",
			"config file path (default: $"+config.ConfigPathEnv+", else built-in defaults)")
		flagSet.BoolVar(&p.verbose, "verbose", false, "enable debug logging")
		return flagSet
	}
}

// orchestrator loads the effective configuration and wires the
// orchestrator for one command invocation.
func (p *params) orchestrator(commandName string, logger *slog.Logger) (*lifecycle.Orchestrator, error) {
	cfg, err := config.Load(p.configPath)
	if err != nil {
		return nil, err
	}
	if p.verbose {
		logger = cli.NewCommandLogger(true)
	}
	return lifecycle.New(cfg, logger.With("command", commandName)), nil
}

// Root builds and returns the complete stagehand CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "stagehand",
		Description: `Stagehand: deployment-lifecycle manager for the stagehand backend.

Fetches the application from its upstream archive, installs its
dependencies, and supervises the running process through the external
process manager.`,
		Subcommands: []*cli.Command{
			setupCommand(),
			installCommand(),
			startCommand(),
			stopCommand(),
			updateCommand(),
			uninstallCommand(),
			clearCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					fmt.Printf("stagehand %s\n", version.String())
					return nil
				},
			},
		},
	}
}

func setupCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "setup",
		Summary: "Install the application and start it",
		Description: `Install the application and start it under the supervisor: the
one-command path for a fresh machine. Equivalent to running install
followed by start.`,
		Usage: "stagehand setup [flags]",
		Flags: p.flags("setup"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("setup", logger)
			if err != nil {
				return err
			}
			if err := orch.Setup(ctx); err != nil {
				return err
			}
			cli.Successf("%s installed and started", orch.Config.App.Name)
			return nil
		},
	}
}

func installCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "install",
		Summary: "Fetch the application and install its dependencies",
		Description: `Fetch the upstream source archive, extract it into the install
directory, and install the application's dependencies. Any existing
install is replaced wholesale. The application is not started; use
start for that.`,
		Usage: "stagehand install [flags]",
		Examples: []cli.Example{
			{
				Description: "Install with an alternate install directory",
				Command:     "STAGEHAND_INSTALL_DIR=/srv/stagehand stagehand install",
			},
		},
		Flags: p.flags("install"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("install", logger)
			if err != nil {
				return err
			}
			if err := orch.Install(ctx); err != nil {
				return err
			}
			cli.Successf("%s installed into %s", orch.Config.App.Name, orch.Config.Paths.InstallDir)
			return nil
		},
	}
}

func startCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "start",
		Summary: "Launch the application under the supervisor",
		Description: `Register and launch the application with the process manager. Any
stale registration from a previous configuration is deleted first, so
the entry always carries the current interpreter and working
directory.`,
		Usage: "stagehand start [flags]",
		Flags: p.flags("start"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("start", logger)
			if err != nil {
				return err
			}
			if err := orch.Start(ctx); err != nil {
				return err
			}
			cli.Successf("%s started", orch.Config.App.Name)
			return nil
		},
	}
}

func stopCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "stop",
		Summary: "Stop the running application",
		Description: `Ask the process manager to stop the application. Stopping an
application that isn't running is a normal outcome, not an error.`,
		Usage: "stagehand stop [flags]",
		Flags: p.flags("stop"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("stop", logger)
			if err != nil {
				return err
			}
			outcome, err := orch.Stop(ctx)
			if err != nil {
				return err
			}
			switch outcome {
			case supervisor.Stopped:
				cli.Successf("%s stopped", orch.Config.App.Name)
			case supervisor.WasNotRunning:
				cli.Warnf("%s wasn't running", orch.Config.App.Name)
			case supervisor.StopFailed:
				cli.Failf("could not stop %s (see log above)", orch.Config.App.Name)
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func updateCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "update",
		Summary: "Replace the install with the latest upstream archive",
		Description: `Stop the application, replace the install tree with a fresh copy of
the upstream archive, reinstall dependencies, and relaunch. The
environment file is carried across the replacement byte for byte;
everything else is replaced.`,
		Usage: "stagehand update [flags]",
		Flags: p.flags("update"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("update", logger)
			if err != nil {
				return err
			}
			if err := orch.Update(ctx); err != nil {
				return err
			}
			cli.Successf("%s updated and restarted", orch.Config.App.Name)
			return nil
		},
	}
}

func uninstallCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "uninstall",
		Summary: "Remove the application and its supervisor entry",
		Description: `Delete the supervisor registration and remove the install directory.
Both are allowed to be already absent; uninstalling a machine that
never had the application succeeds.`,
		Usage: "stagehand uninstall [flags]",
		Flags: p.flags("uninstall"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("uninstall", logger)
			if err != nil {
				return err
			}
			if err := orch.Uninstall(ctx); err != nil {
				return err
			}
			cli.Successf("%s uninstalled", orch.Config.App.Name)
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	var p params
	return &cli.Command{
		Name:    "clear",
		Summary: "Clear generated artifacts from the outputs directory",
		Description: `Remove everything inside the install's outputs subdirectory, leaving
the directory itself and the rest of the install untouched.`,
		Usage: "stagehand clear [flags]",
		Flags: p.flags("clear"),
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			orch, err := p.orchestrator("clear", logger)
			if err != nil {
				return err
			}
			outcome, err := orch.ClearOutputs()
			if err != nil {
				return err
			}
			switch outcome {
			case installtree.Cleared:
				cli.Successf("cleared %s", orch.Config.OutputsPath())
			case installtree.NoOutputsDir:
				cli.Warnf("no outputs directory at %s — nothing to clear", orch.Config.OutputsPath())
			}
			return nil
		},
	}
}
