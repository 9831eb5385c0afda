// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"

	"github.com/noldarim/autoswe/internal/refactor"
)

func (a *app) refactorCommand(args []string) error {
	var (
		maxIterations int
		configPath    string
		noColor       bool
	)
	fs := flag.NewFlagSet("refactor", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.IntVar(&maxIterations, "max", 0, "Maximum iterations (default from config, 20)")
	fs.IntVar(&maxIterations, "m", 0, "Maximum iterations (shorthand)")
	fs.StringVar(&configPath, "config", "", "Path to config file")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, err := a.startSession(configPath)
	if err != nil {
		return err
	}
	defer sess.close()

	cfg := sess.cfg.Refactor
	if maxIterations != 0 {
		cfg.MaxIterations = maxIterations
	}

	loop := refactor.NewLoop(a.newQuerier(sess.cfg), a.stdout, cfg, agentOptions(sess.cfg.Agent))
	loop.NoColor = noColor

	_, err = loop.Run(sess.ctx)
	return err
}
