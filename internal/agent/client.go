// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultStderrTailLines is the number of stderr lines kept for error reports.
	DefaultStderrTailLines = 50

	// maxLineSize bounds a single stream-json line; tool results can be large.
	maxLineSize = 16 * 1024 * 1024

	// waitDelay bounds how long Wait blocks on pipes held open by orphaned children.
	waitDelay = 5 * time.Second
)

var tracer = otel.Tracer("github.com/noldarim/autoswe/internal/agent")

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAgentLogger()
		log = &l
	})
	return log
}

// Querier issues one request to the agent runtime and streams its events.
type Querier interface {
	Query(ctx context.Context, prompt string, opts Options) (*MessageStream, error)
}

// ProcessError reports a non-zero exit of the agent CLI.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("agent process exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("agent process exited with code %d: %s", e.ExitCode, e.Stderr)
}

// DecodeError reports a stdout line that is not a valid event.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode agent event %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CLIConfig configures the subprocess transport.
type CLIConfig struct {
	Path            string            // Agent CLI binary, defaults to "claude"
	FlagFormat      string            // FlagFormatSpace or FlagFormatEquals
	Env             map[string]string // Added to every request environment
	StderrTailLines int
}

// CLIClient runs the agent CLI in stream-json print mode, one process per request.
type CLIClient struct {
	cfg CLIConfig
}

// NewCLIClient creates a new CLI client
func NewCLIClient(cfg CLIConfig) *CLIClient {
	if cfg.Path == "" {
		cfg.Path = "claude"
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = DefaultStderrTailLines
	}
	return &CLIClient{cfg: cfg}
}

// Query starts the agent process. The returned stream must be closed.
func (c *CLIClient) Query(ctx context.Context, prompt string, opts Options) (*MessageStream, error) {
	opts = opts.Clone()
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	args, err := BuildArgs(prompt, opts, c.cfg.FlagFormat)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	runCtx, span := tracer.Start(runCtx, "agent.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", "claude"),
			attribute.String("gen_ai.request.model", opts.Model),
			attribute.String("autoswe.session_id", opts.SessionID),
			attribute.String("autoswe.permission_mode", opts.PermissionMode),
			attribute.Bool("autoswe.structured", opts.OutputFormat != nil),
		),
	)

	cmd := exec.CommandContext(runCtx, c.cfg.Path, args...)
	cmd.Dir = opts.Cwd
	cmd.Env = c.buildEnv(opts)
	cmd.WaitDelay = waitDelay

	stderr := newTailBuffer(c.cfg.StderrTailLines)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		span.End()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	getLog().Debug().
		Str("session_id", opts.SessionID).
		Str("cli", c.cfg.Path).
		Str("model", opts.Model).
		Int("prompt_len", len(prompt)).
		Msg("Starting agent process")

	if err := cmd.Start(); err != nil {
		cancel()
		span.RecordError(err)
		span.SetStatus(codes.Error, "start failed")
		span.End()
		return nil, fmt.Errorf("failed to start %s: %w", c.cfg.Path, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return NewMessageStream(&processSource{
		parent:    ctx,
		cmd:       cmd,
		cancel:    cancel,
		scanner:   scanner,
		stderr:    stderr,
		span:      span,
		sessionID: opts.SessionID,
	}), nil
}

func (c *CLIClient) buildEnv(opts Options) []string {
	env := os.Environ()
	for k, v := range c.cfg.Env {
		env = append(env, k+"="+v)
	}
	for k, v := range opts.Env {
		env = append(env, k+"="+v)
	}
	if opts.MaxThinkingTokens > 0 {
		env = append(env, "MAX_THINKING_TOKENS="+strconv.Itoa(opts.MaxThinkingTokens))
	}
	return env
}

// processSource reads events from a running agent process.
type processSource struct {
	parent    context.Context
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	scanner   *bufio.Scanner
	stderr    *tailBuffer
	span      trace.Span
	sessionID string

	events  int
	waited  bool
	waitErr error
}

func (p *processSource) Recv() (Message, error) {
	if p.waited {
		return nil, p.waitErr
	}

	for p.scanner.Scan() {
		line := bytes.TrimSpace(p.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		msg, err := ParseMessage(line)
		if err != nil {
			decodeErr := &DecodeError{Line: truncateString(string(line), 200), Err: err}
			p.cancel()
			p.finish(decodeErr)
			return nil, decodeErr
		}
		if msg == nil {
			getLog().Trace().Str("session_id", p.sessionID).Msg("Skipping unmodeled event")
			continue
		}

		p.events++
		if res, ok := msg.(*ResultMessage); ok {
			p.span.SetAttributes(
				attribute.String("autoswe.result_subtype", res.Subtype),
				attribute.Int("autoswe.num_turns", res.NumTurns),
				attribute.Float64("autoswe.total_cost_usd", res.TotalCostUSD),
			)
		}
		return msg, nil
	}

	if err := p.scanner.Err(); err != nil {
		p.cancel()
		p.finish(fmt.Errorf("failed to read agent output: %w", err))
		return nil, p.waitErr
	}

	p.finish(nil)
	return nil, p.waitErr
}

func (p *processSource) Close() error {
	if !p.waited {
		p.cancel()
		p.finish(nil)
	}
	return nil
}

// finish waits for the process and records the terminal error, io.EOF on a clean exit.
func (p *processSource) finish(cause error) {
	if p.waited {
		return
	}
	p.waited = true
	defer p.span.End()
	defer p.cancel()

	waitErr := p.cmd.Wait()
	exitCode := 0
	if p.cmd.ProcessState != nil {
		exitCode = p.cmd.ProcessState.ExitCode()
	}
	p.span.SetAttributes(attribute.Int("autoswe.exit_code", exitCode), attribute.Int("autoswe.events", p.events))

	switch {
	case cause != nil:
		p.waitErr = cause
	case p.parent.Err() != nil:
		p.waitErr = p.parent.Err()
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			p.waitErr = &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: p.stderr.String()}
		} else {
			p.waitErr = fmt.Errorf("agent process failed: %w", waitErr)
		}
	default:
		p.waitErr = io.EOF
	}

	l := getLog().Debug()
	if p.waitErr != io.EOF {
		l = getLog().Warn().Err(p.waitErr)
		p.span.RecordError(p.waitErr)
		p.span.SetStatus(codes.Error, "agent query failed")
	}
	l.Str("session_id", p.sessionID).Int("exit_code", exitCode).Int("events", p.events).Msg("Agent process finished")
}

// tailBuffer keeps the last lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial bytes.Buffer
}

func newTailBuffer(maxLines int) *tailBuffer {
	return &tailBuffer{max: maxLines}
}

// Write implements io.Writer
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		if c == '\n' {
			b.addLine(b.partial.String())
			b.partial.Reset()
		} else {
			b.partial.WriteByte(c)
		}
	}
	return len(p), nil
}

func (b *tailBuffer) addLine(line string) {
	b.lines = append(b.lines, truncateString(line, 500))
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// String returns the kept lines including any unterminated last line.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := b.lines
	if b.partial.Len() > 0 {
		lines = append(append([]string{}, lines...), b.partial.String())
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
