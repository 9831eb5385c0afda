// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"

	"github.com/charmbracelet/huh"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/noldarim/autoswe/internal/review"
)

type reviewOptions struct {
	repo       string
	dryRun     bool
	auto       bool
	configPath string
	noColor    bool
}

func (a *app) reviewCommand(args []string) error {
	opts := &reviewOptions{}
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&opts.repo, "repo", "", "Repository in OWNER/REPO format. Uses current repo if not specified.")
	fs.StringVar(&opts.repo, "R", "", "Repository (shorthand)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Show what would be done without making changes.")
	fs.BoolVar(&opts.dryRun, "n", false, "Dry run (shorthand)")
	fs.BoolVar(&opts.auto, "auto", false, "Skip confirmation prompts and add comments automatically.")
	fs.BoolVar(&opts.auto, "y", false, "Auto (shorthand)")
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.startSession(opts.configPath)
	if err != nil {
		return err
	}
	defer sess.close()

	n := &review.Nudger{
		GitHub:  a.newGitHub(sess.cfg),
		Out:     a.stdout,
		Repo:    opts.repo,
		Trigger: sess.cfg.Review.Trigger,
		DryRun:  opts.dryRun,
		Auto:    opts.auto,
		Confirm: a.confirmer,
		NoColor: opts.noColor,
	}

	sum, err := n.Run(sess.ctx)
	l := logger.GetCLILogger()
	l.Info().
		Int("found", sum.Found).
		Int("commented", sum.Commented).
		Int("skipped", sum.Skipped).
		Int("up_to_date", sum.UpToDate).
		Msg("Review nudge finished")
	return err
}

// huhConfirmer asks on the terminal, defaulting to yes.
type huhConfirmer struct{}

func (huhConfirmer) Confirm(question string) (bool, error) {
	ok := true
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
