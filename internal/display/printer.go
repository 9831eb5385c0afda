// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package display renders agent events and status lines for a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/noldarim/autoswe/internal/agent"
)

const (
	thinkingLimit   = 300
	toolResultLimit = 300
	systemLimit     = 200
	ruleWidth       = 72
)

// Printer writes agent events to a terminal.
type Printer struct {
	w       io.Writer
	styles  styles
	color   bool
	textEnd string

	collect   bool
	mu        sync.Mutex
	collected []string
}

// Option configures a Printer.
type Option func(*Printer)

// WithCollector makes the printer keep text block and result text.
func WithCollector() Option {
	return func(p *Printer) { p.collect = true }
}

// WithTextEnd sets the string printed after each text block (default "").
func WithTextEnd(end string) Option {
	return func(p *Printer) { p.textEnd = end }
}

// WithNoColor disables styling.
func WithNoColor() Option {
	return func(p *Printer) { p.color = false }
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, styles: newStyles(w), color: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Print renders one event.
func (p *Printer) Print(msg agent.Message) {
	switch m := msg.(type) {
	case *agent.AssistantMessage:
		p.printBlocks(m.Content)

	case *agent.UserMessage:
		// Only tool results are worth showing from user turns
		for _, block := range m.Content {
			if b, ok := block.(agent.ToolResultBlock); ok {
				p.printToolResult(b)
			}
		}

	case *agent.SystemMessage:
		line := fmt.Sprintf("⚙️ [%s] %s", m.Subtype, Truncate(formatData(m.Data), systemLimit))
		fmt.Fprintln(p.w, p.paint(p.styles.system, line))

	case *agent.ResultMessage:
		if m.Result != "" {
			fmt.Fprintf(p.w, "\n%s\n", m.Result)
			p.keep(m.Result)
		}
	}
}

func (p *Printer) printBlocks(blocks []agent.ContentBlock) {
	for _, block := range blocks {
		switch b := block.(type) {
		case agent.TextBlock:
			fmt.Fprint(p.w, b.Text+p.textEnd)
			p.keep(b.Text)

		case agent.ThinkingBlock:
			fmt.Fprintln(p.w, p.paint(p.styles.thinking, "💭 "+Truncate(b.Thinking, thinkingLimit)))

		case agent.ToolUseBlock:
			fmt.Fprint(p.w, p.paint(p.styles.tool, "🔧 "+b.Name))
			if len(b.Input) > 0 {
				fmt.Fprint(p.w, " "+p.paint(p.styles.preview, FormatToolInput(b.Input)))
			}
			fmt.Fprintln(p.w)

		case agent.ToolResultBlock:
			p.printToolResult(b)
		}
	}
}

func (p *Printer) printToolResult(b agent.ToolResultBlock) {
	text := b.Text()
	if text == "" {
		return
	}
	text = Truncate(text, toolResultLimit)
	if b.IsError {
		fmt.Fprintln(p.w, p.paint(p.styles.failure, "❌ "+text))
	} else {
		fmt.Fprintln(p.w, p.paint(p.styles.success, "✅ "+text))
	}
}

func (p *Printer) keep(text string) {
	if !p.collect {
		return
	}
	p.mu.Lock()
	p.collected = append(p.collected, text)
	p.mu.Unlock()
}

// Collected returns the kept text joined in arrival order.
func (p *Printer) Collected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.collected, "")
}

// Reset drops the kept text.
func (p *Printer) Reset() {
	p.mu.Lock()
	p.collected = nil
	p.mu.Unlock()
}

// Rule prints a horizontal rule with a centered title.
func (p *Printer) Rule(title string) {
	line := strings.Repeat("─", ruleWidth)
	if title != "" {
		side := (ruleWidth - lipgloss.Width(title) - 2) / 2
		if side < 3 {
			side = 3
		}
		fmt.Fprintf(p.w, "%s %s %s\n",
			p.paint(p.styles.rule, strings.Repeat("─", side)),
			p.paint(p.styles.title, title),
			p.paint(p.styles.rule, strings.Repeat("─", side)))
		return
	}
	fmt.Fprintln(p.w, p.paint(p.styles.rule, line))
}

// Title prints a bold heading line.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(p.styles.title, fmt.Sprintf(format, args...)))
}

// Success prints a status line in the success color.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(p.styles.success, fmt.Sprintf(format, args...)))
}

// Warn prints a status line in the warning color.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(p.styles.system, fmt.Sprintf(format, args...)))
}

// Error prints a status line in the error color.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(p.styles.failure, fmt.Sprintf(format, args...)))
}

// Info prints a muted status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.w, p.paint(p.styles.muted, fmt.Sprintf(format, args...)))
}

// Plain prints an unstyled line.
func (p *Printer) Plain(format string, args ...any) {
	fmt.Fprintln(p.w, fmt.Sprintf(format, args...))
}

// paint styles each line separately so multi-line text is not padded to a block.
func (p *Printer) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = style.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}
