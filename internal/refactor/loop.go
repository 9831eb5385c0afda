// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package refactor runs the agent repeatedly with a refactoring prompt until it
// reports that nothing is left to do.
package refactor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/config"
	"github.com/noldarim/autoswe/internal/display"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/rs/zerolog"
)

// DefaultMaxIterations caps the loop when no limit is configured.
const DefaultMaxIterations = 20

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetRefactorLogger()
		log = &l
	})
	return log
}

// Loop drives one agent request per iteration.
type Loop struct {
	Querier       agent.Querier
	Out           io.Writer
	MaxIterations int
	Prompt        string
	Marker        string // Output substring that ends the loop
	Options       agent.Options
	NoColor       bool
}

// Outcome summarizes a finished loop.
type Outcome struct {
	Iterations int
	Converged  bool // The agent reported nothing left to refactor
}

// NewLoop builds a loop from the refactor config section.
func NewLoop(q agent.Querier, out io.Writer, cfg config.RefactorConfig, opts agent.Options) *Loop {
	return &Loop{
		Querier:       q,
		Out:           out,
		MaxIterations: cfg.MaxIterations,
		Prompt:        cfg.Prompt,
		Marker:        cfg.Marker,
		Options:       opts,
	}
}

// Run iterates until the marker appears in the agent output or the cap is hit.
func (l *Loop) Run(ctx context.Context) (Outcome, error) {
	if l.MaxIterations < 1 {
		return Outcome{}, fmt.Errorf("max iterations must be at least 1, got %d", l.MaxIterations)
	}
	if l.Querier == nil {
		return Outcome{}, errors.New("refactor loop requires a querier")
	}

	prompt := l.Prompt
	if prompt == "" {
		prompt = config.DefaultRefactorPrompt
	}
	marker := l.Marker
	if marker == "" {
		marker = config.DefaultRefactorMarker
	}
	out := l.Out
	if out == nil {
		out = io.Discard
	}

	opts := []display.Option{display.WithCollector()}
	if l.NoColor {
		opts = append(opts, display.WithNoColor())
	}
	p := display.NewPrinter(out, opts...)

	for i := 1; i <= l.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return Outcome{Iterations: i - 1}, err
		}

		fmt.Fprintln(out)
		p.Rule(fmt.Sprintf("Iteration %d/%d", i, l.MaxIterations))
		fmt.Fprintln(out)

		getLog().Info().Int("iteration", i).Int("max", l.MaxIterations).Msg("Starting refactor iteration")

		p.Reset()
		if err := l.iterate(ctx, p, prompt); err != nil {
			getLog().Error().Err(err).Int("iteration", i).Msg("Refactor iteration failed")
			return Outcome{Iterations: i}, fmt.Errorf("iteration %d: %w", i, err)
		}
		fmt.Fprintln(out)

		if strings.Contains(p.Collected(), marker) {
			fmt.Fprintln(out)
			p.Success("✨ No more refactoring needed. Done!")
			getLog().Info().Int("iterations", i).Msg("Refactor loop converged")
			return Outcome{Iterations: i, Converged: true}, nil
		}

		fmt.Fprintln(out)
		p.Warn("Refactoring performed. Continuing...")
	}

	fmt.Fprintln(out)
	p.Warn("Reached max iterations (%d)", l.MaxIterations)
	getLog().Info().Int("iterations", l.MaxIterations).Msg("Refactor loop hit iteration cap")
	return Outcome{Iterations: l.MaxIterations}, nil
}

func (l *Loop) iterate(ctx context.Context, p *display.Printer, prompt string) error {
	stream, err := l.Querier.Query(ctx, prompt, l.Options.Clone())
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Next() {
		p.Print(stream.Message())
	}
	return stream.Err()
}
