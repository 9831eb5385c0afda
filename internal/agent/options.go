// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"encoding/json"
	"maps"
	"slices"
)

// Permission modes accepted by the agent CLI.
const (
	PermissionDefault           = "default"
	PermissionAcceptEdits       = "acceptEdits"
	PermissionPlan              = "plan"
	PermissionBypassPermissions = "bypassPermissions"
)

// OutputFormatJSONSchema asks the agent for a final payload matching a JSON schema.
const OutputFormatJSONSchema = "json_schema"

// OutputFormat is the response-shape directive attached to a request.
type OutputFormat struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema"`
}

// Options configures a single agent request. It is a value type: derive new
// options with Clone or the With* helpers instead of sharing and mutating.
type Options struct {
	Model              string
	PermissionMode     string
	SettingSources     []string // user, project, local
	MaxThinkingTokens  int
	MaxTurns           int
	AllowedTools       []string
	DisallowedTools    []string
	SystemPrompt       string
	AppendSystemPrompt string
	Cwd                string
	SessionID          string
	Env                map[string]string
	ExtraArgs          map[string]any // Passthrough flags, nil value renders a bare flag
	OutputFormat       *OutputFormat
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.SettingSources = slices.Clone(o.SettingSources)
	c.AllowedTools = slices.Clone(o.AllowedTools)
	c.DisallowedTools = slices.Clone(o.DisallowedTools)
	c.Env = maps.Clone(o.Env)
	c.ExtraArgs = maps.Clone(o.ExtraArgs)
	if o.OutputFormat != nil {
		f := *o.OutputFormat
		f.Schema = slices.Clone(o.OutputFormat.Schema)
		c.OutputFormat = &f
	}
	return c
}

// WithOutputFormat returns a copy of o whose output format is replaced by f.
func (o Options) WithOutputFormat(f OutputFormat) Options {
	c := o.Clone()
	f.Schema = slices.Clone(f.Schema)
	c.OutputFormat = &f
	return c
}
