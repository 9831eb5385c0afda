// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptyPrompt is returned when a request has no prompt text.
var ErrEmptyPrompt = errors.New("prompt cannot be empty")

// Flag formats for valued CLI flags.
const (
	FlagFormatSpace  = "space"  // --flag value
	FlagFormatEquals = "equals" // --flag=value
)

// BuildArgs builds the agent CLI argv (without the binary) for one request.
// Typed options come first, then ExtraArgs in sorted key order, then the
// prompt as the last positional argument after "--".
func BuildArgs(prompt string, opts Options, flagFormat string) ([]string, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	var useEquals bool
	switch flagFormat {
	case "", FlagFormatSpace:
	case FlagFormatEquals:
		useEquals = true
	default:
		return nil, fmt.Errorf("unsupported flag format: %s", flagFormat)
	}

	// --print is required for non-interactive output
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}

	add := func(flag, value string) {
		if value == "" {
			return
		}
		if useEquals {
			args = append(args, flag+"="+value)
		} else {
			args = append(args, flag, value)
		}
	}

	add("--model", opts.Model)
	add("--permission-mode", opts.PermissionMode)
	add("--setting-sources", strings.Join(opts.SettingSources, ","))
	if opts.MaxThinkingTokens > 0 {
		add("--max-thinking-tokens", strconv.Itoa(opts.MaxThinkingTokens))
	}
	if opts.MaxTurns > 0 {
		add("--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	add("--allowedTools", strings.Join(opts.AllowedTools, ","))
	add("--disallowedTools", strings.Join(opts.DisallowedTools, ","))
	add("--system-prompt", opts.SystemPrompt)
	add("--append-system-prompt", opts.AppendSystemPrompt)

	if opts.OutputFormat != nil {
		if opts.OutputFormat.Type != OutputFormatJSONSchema {
			return nil, fmt.Errorf("unsupported output format type: %q", opts.OutputFormat.Type)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, opts.OutputFormat.Schema); err != nil {
			return nil, fmt.Errorf("invalid output schema: %w", err)
		}
		add("--json-schema", compact.String())
	}

	add("--session-id", opts.SessionID)

	// Sort keys for deterministic output
	keys := make([]string, 0, len(opts.ExtraArgs))
	for key := range opts.ExtraArgs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		flagName := "--" + strings.TrimLeft(key, "-")

		switch v := opts.ExtraArgs[key].(type) {
		case nil:
			args = append(args, flagName)
		case string:
			add(flagName, v)
		case bool:
			// Boolean flags are included only if true (no value)
			if v {
				args = append(args, flagName)
			}
		case int:
			add(flagName, strconv.Itoa(v))
		case int32:
			add(flagName, strconv.FormatInt(int64(v), 10))
		case int64:
			add(flagName, strconv.FormatInt(v, 10))
		case float32:
			add(flagName, strconv.FormatFloat(float64(v), 'f', -1, 32))
		case float64:
			add(flagName, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			return nil, fmt.Errorf("unsupported value type %T for flag %s", v, flagName)
		}
	}

	// Prompt is the last positional argument
	args = append(args, "--", prompt)

	return args, nil
}
