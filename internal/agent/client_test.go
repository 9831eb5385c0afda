// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCLI writes an executable shell script standing in for the agent CLI.
// The script records its argv (one per line) and MAX_THINKING_TOKENS next to itself.
func fakeCLI(t *testing.T, body string) (path string, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	dir := t.TempDir()
	path = filepath.Join(dir, "claude")
	argsFile = filepath.Join(dir, "args.txt")
	script := "#!/bin/sh\n" +
		"for a in \"$@\"; do printf '%s\\n' \"$a\"; done > \"" + argsFile + "\"\n" +
		"echo \"MAX_THINKING_TOKENS=$MAX_THINKING_TOKENS\" >> \"" + argsFile + "\"\n" +
		body
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path, argsFile
}

func collect(t *testing.T, s *MessageStream) []Message {
	t.Helper()
	var msgs []Message
	for s.Next() {
		msgs = append(msgs, s.Message())
	}
	return msgs
}

func TestCLIClientQuery(t *testing.T) {
	path, argsFile := fakeCLI(t, `
echo '{"type":"system","subtype":"init"}'
echo ''
echo '{"type":"stream_event","event":{}}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}'
echo '{"type":"result","subtype":"success","structured_output":{"ok":true}}'
`)

	c := NewCLIClient(CLIConfig{Path: path})
	s, err := c.Query(context.Background(), "say hi", Options{Model: "m", MaxThinkingTokens: 64})
	require.NoError(t, err)
	defer s.Close()

	msgs := collect(t, s)
	require.NoError(t, s.Err())
	require.Len(t, msgs, 3)
	assert.IsType(t, &SystemMessage{}, msgs[0])
	assert.IsType(t, &AssistantMessage{}, msgs[1])
	res := msgs[2].(*ResultMessage)
	assert.JSONEq(t, `{"ok":true}`, string(res.StructuredOutput))

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, []string{"--print", "--output-format", "stream-json", "--verbose", "--model", "m"}, lines[:6])
	assert.Contains(t, lines, "--session-id", "a session id is generated per request")
	assert.Equal(t, "say hi", lines[len(lines)-2])
	assert.Equal(t, "MAX_THINKING_TOKENS=64", lines[len(lines)-1])
}

func TestCLIClientProcessError(t *testing.T) {
	path, _ := fakeCLI(t, `
echo '{"type":"system","subtype":"init"}'
echo "invalid api key" >&2
exit 3
`)

	c := NewCLIClient(CLIConfig{Path: path})
	s, err := c.Query(context.Background(), "q", Options{})
	require.NoError(t, err)
	defer s.Close()

	msgs := collect(t, s)
	assert.Len(t, msgs, 1)

	var perr *ProcessError
	require.ErrorAs(t, s.Err(), &perr)
	assert.Equal(t, 3, perr.ExitCode)
	assert.Equal(t, "invalid api key", perr.Stderr)
}

func TestCLIClientDecodeError(t *testing.T) {
	path, _ := fakeCLI(t, `
echo 'this is not json'
exec sleep 5
`)

	c := NewCLIClient(CLIConfig{Path: path})
	s, err := c.Query(context.Background(), "q", Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, collect(t, s))
	var derr *DecodeError
	require.ErrorAs(t, s.Err(), &derr)
	assert.Equal(t, "this is not json", derr.Line)
}

func TestCLIClientCancel(t *testing.T) {
	path, _ := fakeCLI(t, `
echo '{"type":"system","subtype":"init"}'
exec sleep 5
`)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCLIClient(CLIConfig{Path: path})
	s, err := c.Query(ctx, "q", Options{})
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Next())
	cancel()
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestCLIClientRejectsEmptyPrompt(t *testing.T) {
	c := NewCLIClient(CLIConfig{Path: "/nonexistent/claude"})
	_, err := c.Query(context.Background(), "", Options{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestCLIClientMissingBinary(t *testing.T) {
	c := NewCLIClient(CLIConfig{Path: filepath.Join(t.TempDir(), "missing")})
	_, err := c.Query(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(2)
	_, _ = b.Write([]byte("one\ntwo\nthr"))
	_, _ = b.Write([]byte("ee\nfour"))
	assert.Equal(t, "two\nthree\nfour", b.String())
}
