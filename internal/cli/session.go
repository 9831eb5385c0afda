// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/config"
	"github.com/noldarim/autoswe/internal/display"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/noldarim/autoswe/internal/telemetry"
)

// session is the per-command runtime: config, logging, tracing and a context
// cancelled on interrupt.
type session struct {
	cfg   *config.AppConfig
	ctx   context.Context
	close func()
}

func (a *app) startSession(configPath string) (*session, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Logs go to file by default, the terminal belongs to agent output
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, telemetry.WithVersion(appVersion))
	if err != nil {
		stop()
		logger.CloseGlobal()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &session{
		cfg: cfg,
		ctx: ctx,
		close: func() {
			stop()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				l := logger.GetCLILogger()
				l.Warn().Err(err).Msg("Telemetry shutdown failed")
			}
			logger.CloseGlobal()
		},
	}, nil
}

// agentOptions builds the request defaults from the agent config section.
func agentOptions(cfg config.AgentConfig) agent.Options {
	return agent.Options{
		Model:             cfg.Model,
		PermissionMode:    cfg.PermissionMode,
		SettingSources:    append([]string(nil), cfg.SettingSources...),
		MaxThinkingTokens: cfg.MaxThinkingTokens,
		MaxTurns:          cfg.MaxTurns,
		ExtraArgs:         cfg.ExtraArgs,
	}.Clone()
}

func (a *app) printer(noColor bool, opts ...display.Option) *display.Printer {
	if noColor {
		opts = append(opts, display.WithNoColor())
	}
	return display.NewPrinter(a.stdout, opts...)
}
