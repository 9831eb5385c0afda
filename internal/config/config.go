// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Log         LogConfig         `mapstructure:"log"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Refactor    RefactorConfig    `mapstructure:"refactor"`
	Review      ReviewConfig      `mapstructure:"review"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"`
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// AgentConfig holds the defaults used for every request sent to the agent CLI.
type AgentConfig struct {
	CLIPath           string            `mapstructure:"cli_path"`            // Agent CLI binary, looked up on PATH when relative
	Model             string            `mapstructure:"model"`               // Empty = CLI default
	PermissionMode    string            `mapstructure:"permission_mode"`     // Empty = CLI default
	SettingSources    []string          `mapstructure:"setting_sources"`     // user, project, local
	MaxThinkingTokens int               `mapstructure:"max_thinking_tokens"` // 0 = CLI default
	MaxTurns          int               `mapstructure:"max_turns"`           // 0 = unlimited
	FlagFormat        string            `mapstructure:"flag_format"`         // "space" (--flag value) or "equals" (--flag=value)
	ExtraArgs         map[string]any    `mapstructure:"extra_args"`          // Passthrough CLI flags
	Env               map[string]string `mapstructure:"env"`                 // Extra environment for the CLI process
	StderrTailLines   int               `mapstructure:"stderr_tail_lines"`   // Stderr lines kept for error reports
}

// PermissionsConfig holds the settings for the tool-permission probe.
type PermissionsConfig struct {
	PermissionMode    string   `mapstructure:"permission_mode"`
	SettingSources    []string `mapstructure:"setting_sources"`
	MaxThinkingTokens int      `mapstructure:"max_thinking_tokens"`
	Prompt            string   `mapstructure:"prompt"`
}

// RefactorConfig holds the settings for the refactor loop.
type RefactorConfig struct {
	MaxIterations int    `mapstructure:"max_iterations"`
	Prompt        string `mapstructure:"prompt"`
	Marker        string `mapstructure:"marker"` // Output substring that ends the loop
}

// ReviewConfig holds the settings for the review nudger.
type ReviewConfig struct {
	GHPath  string `mapstructure:"gh_path"`
	Trigger string `mapstructure:"trigger"` // Comment body that requests an automated review
	Search  string `mapstructure:"search"`  // gh search query for PRs awaiting the user
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP/HTTP host:port
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Permission modes understood by the agent CLI.
const (
	PermissionModeDefault           = "default"
	PermissionModeAcceptEdits       = "acceptEdits"
	PermissionModePlan              = "plan"
	PermissionModeBypassPermissions = "bypassPermissions"
)

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.autoswe")
	}

	v.SetEnvPrefix("AUTOSWE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults keys viper knows about
	setDefaults(v, "", reflect.ValueOf(cfg))

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Values from the file and env overwrite the defaults already present in cfg.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every scalar and string-list leaf of rv under its
// mapstructure key. Maps and lists of sections are merged by Unmarshal instead.
func setDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.Struct:
			setDefaults(v, key, fv)
		case reflect.Map:
		case reflect.Slice:
			if fv.Type().Elem().Kind() == reflect.String {
				v.SetDefault(key, fv.Interface())
			}
		default:
			v.SetDefault(key, fv.Interface())
		}
	}
}

// Default returns the built-in configuration without reading files or env.
func Default() *AppConfig {
	cfg := defaultConfig()
	cfg.expandPaths()
	return &cfg
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "~/.autoswe/logs/autoswe.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  20,
						MaxBackups: 5,
						MaxAgeDays: 14,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false, // The terminal belongs to the agent output
				},
			},
			Levels: map[string]string{
				"agent":      "INFO",
				"structured": "INFO",
				"refactor":   "INFO",
				"review":     "INFO",
				"cli":        "INFO",
				"telemetry":  "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     false,
				IncludeTimestamp:  true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Agent: AgentConfig{
			CLIPath:         "claude",
			FlagFormat:      "space",
			StderrTailLines: 50,
		},
		Permissions: PermissionsConfig{
			PermissionMode:    PermissionModeAcceptEdits,
			SettingSources:    []string{"user", "project", "local"},
			MaxThinkingTokens: 128000,
			Prompt:            DefaultPermissionPrompt,
		},
		Refactor: RefactorConfig{
			MaxIterations: 20,
			Prompt:        DefaultRefactorPrompt,
			Marker:        DefaultRefactorMarker,
		},
		Review: ReviewConfig{
			GHPath:  "gh",
			Trigger: "@codex review",
			Search:  "review-requested:@me",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "autoswe",
			SampleRate:  1.0,
		},
	}
}

// DefaultRefactorMarker is printed by the agent when it finds nothing left to refactor.
const DefaultRefactorMarker = "<promise>NO REFACTORING NEEDED</promise>"

// DefaultRefactorPrompt asks the agent for one targeted refactor per iteration.
const DefaultRefactorPrompt = "Analyze the project code to find a precise/targeted/elegant refactoring objective. " +
	"You must analyze existing local branches and pick an objective that is not a duplicate. " +
	"Perform the refactor. Use `gt create <branchname> -m ...` to create a commit. " +
	"When you cannot find any refactoring objectives, output '" + DefaultRefactorMarker + "'"

// DefaultPermissionPrompt asks the agent to exercise every tool it has.
const DefaultPermissionPrompt = `Your task is to test all available tools to discover permission boundaries.

For each tool you have access to, attempt to use it with a simple, safe test case.
Report whether each tool:
1. Works successfully
2. Requires permission/approval
3. Is denied or errors

Test these categories of tools if available:
- File reading (try reading a small file like README.md or go.mod)
- File writing/editing (try creating a temp test file)
- Bash/shell commands (try a simple command like 'echo hello' or 'ls')
- Web/network tools (try fetching a simple URL if available)
- Any other tools you have access to

After testing each tool, provide a final summary table of:
- Tool name
- Status (allowed/denied/needs-permission)
- Any restrictions or limitations observed

Be thorough - test every tool you can find.`

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}

	if strings.ContainsAny(c.Agent.CLIPath, `/\~$`) {
		c.Agent.CLIPath = expandPath(c.Agent.CLIPath)
	}
	if strings.ContainsAny(c.Review.GHPath, `/\~$`) {
		c.Review.GHPath = expandPath(c.Review.GHPath)
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

var validPermissionModes = map[string]bool{
	"":                              true,
	PermissionModeDefault:           true,
	PermissionModeAcceptEdits:       true,
	PermissionModePlan:              true,
	PermissionModeBypassPermissions: true,
}

var validSettingSources = map[string]bool{
	"user":    true,
	"project": true,
	"local":   true,
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Agent.CLIPath == "" {
		return errors.New("agent.cli_path is required")
	}
	if c.Agent.FlagFormat != "" && c.Agent.FlagFormat != "space" && c.Agent.FlagFormat != "equals" {
		return fmt.Errorf("agent.flag_format must be 'space' or 'equals', got: %s", c.Agent.FlagFormat)
	}
	if !validPermissionModes[c.Agent.PermissionMode] {
		return fmt.Errorf("invalid agent.permission_mode: %s", c.Agent.PermissionMode)
	}
	if !validPermissionModes[c.Permissions.PermissionMode] {
		return fmt.Errorf("invalid permissions.permission_mode: %s", c.Permissions.PermissionMode)
	}
	for _, src := range append(append([]string{}, c.Agent.SettingSources...), c.Permissions.SettingSources...) {
		if !validSettingSources[src] {
			return fmt.Errorf("invalid setting source: %s (supported: user, project, local)", src)
		}
	}
	if c.Agent.MaxThinkingTokens < 0 || c.Permissions.MaxThinkingTokens < 0 {
		return errors.New("max_thinking_tokens cannot be negative")
	}
	if c.Agent.MaxTurns < 0 {
		return errors.New("agent.max_turns cannot be negative")
	}

	if c.Permissions.Prompt == "" {
		return errors.New("permissions.prompt is required")
	}

	if c.Refactor.MaxIterations < 1 {
		return fmt.Errorf("refactor.max_iterations must be at least 1, got: %d", c.Refactor.MaxIterations)
	}
	if c.Refactor.Prompt == "" || c.Refactor.Marker == "" {
		return errors.New("refactor.prompt and refactor.marker are required")
	}

	if c.Review.GHPath == "" {
		return errors.New("review.gh_path is required")
	}
	if c.Review.Trigger == "" {
		return errors.New("review.trigger is required")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got: %v", c.Telemetry.SampleRate)
		}
	}

	return nil
}
