// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agenttest provides a scripted agent.Querier for tests.
package agenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/noldarim/autoswe/internal/agent"
)

// Response scripts the outcome of one Query call.
type Response struct {
	Messages  []agent.Message
	Err       error // Returned by Query itself
	StreamErr error // Ends the stream after Messages
}

// Call records the arguments of one Query call.
type Call struct {
	Prompt  string
	Options agent.Options
}

// Querier replays scripted responses in call order.
type Querier struct {
	mu        sync.Mutex
	responses []Response
	calls     []Call
	closed    int
}

// New creates a Querier that answers the n-th call with responses[n].
func New(responses ...Response) *Querier {
	return &Querier{responses: responses}
}

// Messages is shorthand for a Querier answering a single call with msgs.
func Messages(msgs ...agent.Message) *Querier {
	return New(Response{Messages: msgs})
}

func (q *Querier) Query(ctx context.Context, prompt string, opts agent.Options) (*agent.MessageStream, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.calls)
	q.calls = append(q.calls, Call{Prompt: prompt, Options: opts.Clone()})

	if n >= len(q.responses) {
		return nil, fmt.Errorf("agenttest: no scripted response for call %d", n+1)
	}
	resp := q.responses[n]
	if resp.Err != nil {
		return nil, resp.Err
	}

	return agent.NewMessageStream(&source{ctx: ctx, q: q, msgs: resp.Messages, err: resp.StreamErr}), nil
}

// Calls returns the recorded calls.
func (q *Querier) Calls() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Call(nil), q.calls...)
}

// Closed returns how many streams were closed.
func (q *Querier) Closed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

type source struct {
	ctx    context.Context
	q      *Querier
	msgs   []agent.Message
	err    error
	closed bool
}

func (s *source) Recv() (agent.Message, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.msgs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	msg := s.msgs[0]
	s.msgs = s.msgs[1:]
	return msg, nil
}

func (s *source) Close() error {
	if !s.closed {
		s.closed = true
		s.q.mu.Lock()
		s.q.closed++
		s.q.mu.Unlock()
	}
	return nil
}

// Text returns an assistant event with a single text block.
func Text(text string) *agent.AssistantMessage {
	return &agent.AssistantMessage{Model: "test-model", Content: []agent.ContentBlock{agent.TextBlock{Text: text}}}
}

// Result returns a successful terminal event carrying the given raw payload.
// An empty payload leaves StructuredOutput absent.
func Result(payload string) *agent.ResultMessage {
	res := &agent.ResultMessage{Subtype: "success", NumTurns: 1}
	if payload != "" {
		res.StructuredOutput = json.RawMessage(payload)
	}
	return res
}

// ResultText returns a successful terminal event whose result text is text.
func ResultText(text string) *agent.ResultMessage {
	return &agent.ResultMessage{Subtype: "success", NumTurns: 1, Result: text}
}
