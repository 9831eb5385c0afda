// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	PrimaryColor   = lipgloss.Color("#7C3AED")
	SecondaryColor = lipgloss.Color("#A78BFA")
	AccentColor    = lipgloss.Color("#10B981")
	InfoColor      = lipgloss.Color("#22D3EE")
	MutedColor     = lipgloss.Color("#9CA3AF")
	BorderColor    = lipgloss.Color("#4B5563")
	ErrorColor     = lipgloss.Color("#EF4444")
	WarningColor   = lipgloss.Color("#F59E0B")
)

// styles holds the styles of one output, bound to that output's renderer so
// color detection follows the writer rather than stdout.
type styles struct {
	thinking lipgloss.Style
	tool     lipgloss.Style
	preview  lipgloss.Style
	success  lipgloss.Style
	failure  lipgloss.Style
	system   lipgloss.Style
	rule     lipgloss.Style
	title    lipgloss.Style
	muted    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		thinking: r.NewStyle().Foreground(MutedColor).Faint(true).Italic(true),
		tool:     r.NewStyle().Foreground(InfoColor).Bold(true),
		preview:  r.NewStyle().Foreground(MutedColor).Faint(true),
		success:  r.NewStyle().Foreground(AccentColor),
		failure:  r.NewStyle().Foreground(ErrorColor),
		system:   r.NewStyle().Foreground(WarningColor),
		rule:     r.NewStyle().Foreground(BorderColor),
		title:    r.NewStyle().Foreground(PrimaryColor).Bold(true),
		muted:    r.NewStyle().Foreground(MutedColor),
	}
}
