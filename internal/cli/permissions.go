// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"flag"
	"fmt"

	"github.com/noldarim/autoswe/internal/display"
	"github.com/noldarim/autoswe/internal/logger"
)

func (a *app) permissionsCommand(args []string) error {
	var configPath string
	var noColor bool
	fs := flag.NewFlagSet("permissions", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
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

	perm := sess.cfg.Permissions
	opts := agentOptions(sess.cfg.Agent)
	opts.PermissionMode = perm.PermissionMode
	opts.SettingSources = append([]string(nil), perm.SettingSources...)
	opts.MaxThinkingTokens = perm.MaxThinkingTokens

	l := logger.GetCLILogger()
	l.Info().Str("permission_mode", opts.PermissionMode).Strs("setting_sources", opts.SettingSources).Msg("Probing tool permissions")

	stream, err := a.newQuerier(sess.cfg).Query(sess.ctx, perm.Prompt, opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	p := a.printer(noColor, display.WithTextEnd("\n"))
	for stream.Next() {
		p.Print(stream.Message())
	}
	if err := stream.Err(); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout)
	return nil
}
