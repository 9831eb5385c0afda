// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.validate())

	assert.Equal(t, "claude", cfg.Agent.CLIPath)
	assert.Equal(t, 20, cfg.Refactor.MaxIterations)
	assert.Equal(t, DefaultRefactorMarker, cfg.Refactor.Marker)
	assert.Contains(t, cfg.Refactor.Prompt, DefaultRefactorMarker)
	assert.Equal(t, PermissionModeAcceptEdits, cfg.Permissions.PermissionMode)
	assert.Equal(t, []string{"user", "project", "local"}, cfg.Permissions.SettingSources)
	assert.Equal(t, 128000, cfg.Permissions.MaxThinkingTokens)
	assert.Equal(t, "@codex review", cfg.Review.Trigger)
	assert.Equal(t, "review-requested:@me", cfg.Review.Search)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestDefaultExpandsLogPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := Default()
	assert.Equal(t, filepath.Join(home, ".autoswe", "logs", "autoswe.log"), cfg.Log.Output[0].Path)
	// Bare binary names stay on PATH lookup
	assert.Equal(t, "claude", cfg.Agent.CLIPath)
}

func TestNewConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
agent:
  model: claude-sonnet-4-5
  permission_mode: plan
  max_turns: 7
  flag_format: equals
  extra_args:
    add-dir: /tmp/work
refactor:
  max_iterations: 3
review:
  trigger: "@bot review"
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", cfg.Agent.Model)
	assert.Equal(t, PermissionModePlan, cfg.Agent.PermissionMode)
	assert.Equal(t, 7, cfg.Agent.MaxTurns)
	assert.Equal(t, "equals", cfg.Agent.FlagFormat)
	assert.Equal(t, "/tmp/work", cfg.Agent.ExtraArgs["add-dir"])
	assert.Equal(t, 3, cfg.Refactor.MaxIterations)
	assert.Equal(t, "@bot review", cfg.Review.Trigger)

	// Untouched sections keep their defaults
	assert.Equal(t, "gh", cfg.Review.GHPath)
	assert.Equal(t, DefaultRefactorMarker, cfg.Refactor.Marker)
}

func TestNewConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "refactor:\n  max_iterations: 3\n")
	t.Setenv("AUTOSWE_REFACTOR_MAX_ITERATIONS", "9")

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Refactor.MaxIterations)
}

func TestNewConfigEnvOverrideWithoutFileKey(t *testing.T) {
	path := writeConfig(t, "refactor:\n  max_iterations: 3\n")
	t.Setenv("AUTOSWE_AGENT_MODEL", "opus")
	t.Setenv("AUTOSWE_REVIEW_TRIGGER", "@bot review")
	t.Setenv("AUTOSWE_PERMISSIONS_SETTING_SOURCES", "user,project")
	t.Setenv("AUTOSWE_TELEMETRY_ENABLED", "true")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "opus", cfg.Agent.Model)
	assert.Equal(t, "@bot review", cfg.Review.Trigger)
	assert.Equal(t, []string{"user", "project"}, cfg.Permissions.SettingSources)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 3, cfg.Refactor.MaxIterations)

	// Defaults not overridden anywhere survive
	assert.Equal(t, "gh", cfg.Review.GHPath)
	assert.Equal(t, "INFO", cfg.Log.Levels["agent"])
	assert.Len(t, cfg.Log.Output, 2)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*AppConfig)
		errorMsg string
	}{
		{
			name:     "invalid log level",
			mutate:   func(c *AppConfig) { c.Log.Level = "LOUD" },
			errorMsg: "invalid log level",
		},
		{
			name:     "invalid permission mode",
			mutate:   func(c *AppConfig) { c.Agent.PermissionMode = "yolo" },
			errorMsg: "invalid agent.permission_mode",
		},
		{
			name:     "invalid flag format",
			mutate:   func(c *AppConfig) { c.Agent.FlagFormat = "colon" },
			errorMsg: "agent.flag_format",
		},
		{
			name:     "invalid setting source",
			mutate:   func(c *AppConfig) { c.Permissions.SettingSources = []string{"global"} },
			errorMsg: "invalid setting source: global",
		},
		{
			name:     "zero iterations",
			mutate:   func(c *AppConfig) { c.Refactor.MaxIterations = 0 },
			errorMsg: "refactor.max_iterations must be at least 1",
		},
		{
			name:     "missing trigger",
			mutate:   func(c *AppConfig) { c.Review.Trigger = "" },
			errorMsg: "review.trigger is required",
		},
		{
			name: "telemetry sample rate",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.SampleRate = 2
			},
			errorMsg: "telemetry.sample_rate",
		},
		{
			name:     "negative thinking tokens",
			mutate:   func(c *AppConfig) { c.Agent.MaxThinkingTokens = -1 },
			errorMsg: "max_thinking_tokens cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("AUTOSWE_TEST_DIR", "/opt/tools")

	assert.Equal(t, filepath.Join(home, "bin/claude"), expandPath("~/bin/claude"))
	assert.Equal(t, "/opt/tools/gh", expandPath("$AUTOSWE_TEST_DIR/gh"))
	assert.Equal(t, "", expandPath(""))
}
