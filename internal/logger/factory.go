// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetAgentLogger returns a logger for the agent CLI transport
func GetAgentLogger() zerolog.Logger {
	return GetLogger("agent")
}

// GetStructuredLogger returns a logger for structured queries
func GetStructuredLogger() zerolog.Logger {
	return GetLogger("structured")
}

// GetRefactorLogger returns a logger for the refactor loop
func GetRefactorLogger() zerolog.Logger {
	return GetLogger("refactor")
}

// GetReviewLogger returns a logger for review nudging and gh calls
func GetReviewLogger() zerolog.Logger {
	return GetLogger("review")
}

// GetCLILogger returns a logger for command dispatch
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}

// GetTelemetryLogger returns a logger for tracing setup
func GetTelemetryLogger() zerolog.Logger {
	return GetLogger("telemetry")
}
