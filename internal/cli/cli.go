// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/config"
	"github.com/noldarim/autoswe/internal/review"
)

const (
	appName    = "autoswe"
	appVersion = "0.1.0"
)

// app holds the collaborators every command needs, swappable in tests.
type app struct {
	stdout io.Writer
	stderr io.Writer

	newQuerier func(cfg *config.AppConfig) agent.Querier
	newGitHub  func(cfg *config.AppConfig) review.GitHub
	confirmer  review.Confirmer
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newQuerier: func(cfg *config.AppConfig) agent.Querier {
			return agent.NewCLIClient(agent.CLIConfig{
				Path:            cfg.Agent.CLIPath,
				FlagFormat:      cfg.Agent.FlagFormat,
				Env:             cfg.Agent.Env,
				StderrTailLines: cfg.Agent.StderrTailLines,
			})
		},
		newGitHub: func(cfg *config.AppConfig) review.GitHub {
			return review.NewGHClient(cfg.Review.GHPath, review.WithSearch(cfg.Review.Search))
		},
		confirmer: huhConfirmer{},
	}
}

// Execute runs the CLI application
func Execute() error {
	return newApp().execute(os.Args[1:])
}

func (a *app) execute(args []string) error {
	if len(args) < 1 {
		return a.printUsage()
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "ask":
		return a.askCommand(rest)
	case "permissions":
		return a.permissionsCommand(rest)
	case "refactor":
		return a.refactorCommand(rest)
	case "review":
		return a.reviewCommand(rest)
	case "version":
		fmt.Fprintf(a.stdout, "%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return a.printUsage()
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n\n", command)
		if err := a.printUsage(); err != nil {
			return err
		}
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) printUsage() error {
	fmt.Fprintf(a.stdout, `%s - developer workflow automation on top of the claude agent CLI

Usage:
  %s <command> [arguments]

Commands:
  ask [prompt]   Ask a question and get a schema-validated answer
  permissions    Probe which agent tools are allowed, denied or need approval
  refactor       Let the agent refactor the project until nothing is left
  review         Request automated reviews on PRs awaiting your review
  version        Print version information
  help           Show this help message

Examples:
  %s ask
  %s ask --schema verdict.yaml "Is this branch ready to merge?"
  %s ask --stream --json "Tell me about Anthropic, the AI company."
  %s permissions
  %s refactor --max 5
  %s review --repo owner/repo --dry-run
  %s review -y

`, appName, appName, appName, appName, appName, appName, appName, appName, appName)
	return nil
}
