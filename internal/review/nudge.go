// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package review finds pull requests awaiting the user's review and asks an
// automated reviewer to look at them by posting a trigger comment.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/noldarim/autoswe/internal/display"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/rs/zerolog"
)

// DefaultTrigger is the comment body that requests an automated review.
const DefaultTrigger = "@codex review"

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetReviewLogger()
		log = &l
	})
	return log
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(question string) (bool, error)

func (f ConfirmFunc) Confirm(question string) (bool, error) {
	return f(question)
}

// Nudger posts trigger comments on PRs that need a fresh automated review.
type Nudger struct {
	GitHub  GitHub
	Out     io.Writer
	Repo    string // OWNER/REPO, empty for the current repository
	Trigger string
	DryRun  bool // Never comment
	Auto    bool // Comment without asking
	Confirm Confirmer
	NoColor bool
}

// Summary counts what happened to each PR.
type Summary struct {
	Found     int
	Commented int
	Skipped   int // Declined or dry-run
	UpToDate  int
}

// Run processes every PR requesting the user's review.
func (n *Nudger) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	if n.GitHub == nil {
		return sum, errors.New("review nudger requires a GitHub client")
	}
	if !n.DryRun && !n.Auto && n.Confirm == nil {
		return sum, errors.New("interactive mode requires a confirmer")
	}

	trigger := n.Trigger
	if trigger == "" {
		trigger = DefaultTrigger
	}
	out := n.Out
	if out == nil {
		out = io.Discard
	}
	var opts []display.Option
	if n.NoColor {
		opts = append(opts, display.WithNoColor())
	}
	p := display.NewPrinter(out, opts...)

	prs, err := n.GitHub.ReviewRequested(ctx, n.Repo)
	if err != nil {
		return sum, err
	}
	sum.Found = len(prs)

	if len(prs) == 0 {
		p.Plain("No PRs requesting your review.")
		return sum, nil
	}

	p.Plain("Found %d PR(s) requesting your review:\n", len(prs))

	for _, pr := range prs {
		p.Title("PR #%d: %s", pr.Number, pr.Title)
		p.Plain("  URL: %s", pr.URL)

		details, err := n.GitHub.Details(ctx, pr.Number, n.Repo)
		if err != nil {
			return sum, fmt.Errorf("PR #%d: %w", pr.Number, err)
		}

		should, reason := NeedsReview(details, trigger)
		l := getLog().Info().Int("pr", pr.Number).Str("reason", reason)

		switch {
		case !should:
			sum.UpToDate++
			p.Info("  Status: %s, skipping.\n", reason)
			l.Msg("PR already reviewed")

		case n.DryRun:
			sum.Skipped++
			p.Warn("  Status: %s. Would add '%s' comment (dry-run).\n", reason, trigger)
			l.Msg("Dry run, not commenting")

		default:
			ok := n.Auto
			if !ok {
				ok, err = n.Confirm.Confirm(fmt.Sprintf("  %s. Add '%s' comment?", reason, trigger))
				if err != nil {
					return sum, fmt.Errorf("PR #%d: confirmation failed: %w", pr.Number, err)
				}
			}
			if !ok {
				sum.Skipped++
				p.Info("  Status: Skipped.\n")
				l.Msg("User declined")
				continue
			}

			if err := n.GitHub.Comment(ctx, pr.Number, trigger, n.Repo); err != nil {
				return sum, fmt.Errorf("PR #%d: %w", pr.Number, err)
			}
			sum.Commented++
			p.Success("  Status: Added '%s' comment.\n", trigger)
			l.Msg("Posted review trigger")
		}
	}

	return sum, nil
}
