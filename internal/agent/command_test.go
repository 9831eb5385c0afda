// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	base := []string{"--print", "--output-format", "stream-json", "--verbose"}

	tests := []struct {
		name       string
		prompt     string
		opts       Options
		flagFormat string
		want       []string
		errorMsg   string
	}{
		{
			name:   "prompt only",
			prompt: "hello",
			want:   append(append([]string{}, base...), "--", "hello"),
		},
		{
			name:   "typed options",
			prompt: "probe tools",
			opts: Options{
				Model:             "claude-opus-4-1",
				PermissionMode:    PermissionAcceptEdits,
				SettingSources:    []string{"user", "project", "local"},
				MaxThinkingTokens: 128000,
				MaxTurns:          5,
				AllowedTools:      []string{"Read", "Bash"},
				SessionID:         "abc",
			},
			want: append(append([]string{}, base...),
				"--model", "claude-opus-4-1",
				"--permission-mode", "acceptEdits",
				"--setting-sources", "user,project,local",
				"--max-thinking-tokens", "128000",
				"--max-turns", "5",
				"--allowedTools", "Read,Bash",
				"--session-id", "abc",
				"--", "probe tools"),
		},
		{
			name:   "json schema is compacted",
			prompt: "q",
			opts: Options{OutputFormat: &OutputFormat{
				Type:   OutputFormatJSONSchema,
				Schema: json.RawMessage("{\n  \"type\": \"object\"\n}"),
			}},
			want: append(append([]string{}, base...), "--json-schema", `{"type":"object"}`, "--", "q"),
		},
		{
			name:   "extra args sorted",
			prompt: "q",
			opts: Options{ExtraArgs: map[string]any{
				"zeta":      "z",
				"alpha":     true,
				"disabled":  false,
				"count":     3,
				"ratio":     0.5,
				"--dashed":  "d",
				"bare-flag": nil,
			}},
			want: append(append([]string{}, base...),
				"--dashed", "d",
				"--alpha",
				"--bare-flag",
				"--count", "3",
				"--ratio", "0.5",
				"--zeta", "z",
				"--", "q"),
		},
		{
			name:       "equals format",
			prompt:     "q",
			opts:       Options{Model: "m", ExtraArgs: map[string]any{"add-dir": "/tmp", "debug": true}},
			flagFormat: FlagFormatEquals,
			want:       append(append([]string{}, base...), "--model=m", "--add-dir=/tmp", "--debug", "--", "q"),
		},
		{
			name:     "empty prompt",
			prompt:   "  ",
			errorMsg: "prompt cannot be empty",
		},
		{
			name:       "bad flag format",
			prompt:     "q",
			flagFormat: "colon",
			errorMsg:   "unsupported flag format: colon",
		},
		{
			name:     "bad output format type",
			prompt:   "q",
			opts:     Options{OutputFormat: &OutputFormat{Type: "xml"}},
			errorMsg: "unsupported output format type",
		},
		{
			name:     "invalid schema",
			prompt:   "q",
			opts:     Options{OutputFormat: &OutputFormat{Type: OutputFormatJSONSchema, Schema: json.RawMessage(`{`)}},
			errorMsg: "invalid output schema",
		},
		{
			name:     "unsupported extra arg type",
			prompt:   "q",
			opts:     Options{ExtraArgs: map[string]any{"list": []string{"a"}}},
			errorMsg: "unsupported value type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildArgs(tt.prompt, tt.opts, tt.flagFormat)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildArgsEmptyPromptSentinel(t *testing.T) {
	_, err := BuildArgs("", Options{}, "")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestBuildArgsPromptStartingWithDash(t *testing.T) {
	got, err := BuildArgs("--help me", Options{}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"--", "--help me"}, got[len(got)-2:])
}
