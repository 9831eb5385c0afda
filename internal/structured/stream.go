// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package structured

import (
	"context"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Stream yields every event of a structured request, pairing the terminal
// event with its validated answer.
//
//	for stream.Next() {
//		if res := stream.Result(); res != nil {
//			// final answer
//		}
//	}
type Stream[T any] struct {
	schema *schema.Schema
	inner  *agent.MessageStream
	span   trace.Span

	cur    agent.Message
	result *T
	final  *T
	err    error
	done   bool

	// Events read ahead of cur while looking for a later payload
	pending   []agent.Message
	innerDone bool
}

// QueryStream sends prompt with a schema derived from T and streams the events.
// Unlike Query, a stream that ends without a payload is not an error; check Final.
func QueryStream[T any](ctx context.Context, q agent.Querier, prompt string, base *agent.Options) (*Stream[T], error) {
	s, err := schema.For[T]()
	if err != nil {
		return nil, err
	}
	return openStream[T](ctx, q, prompt, s, base)
}

// QuerySchemaStream is QueryStream for schemas only known at run time.
func QuerySchemaStream(ctx context.Context, q agent.Querier, prompt string, s *schema.Schema, base *agent.Options) (*Stream[map[string]any], error) {
	return openStream[map[string]any](ctx, q, prompt, s, base)
}

func openStream[T any](ctx context.Context, q agent.Querier, prompt string, s *schema.Schema, base *agent.Options) (*Stream[T], error) {
	ctx, span := tracer.Start(ctx, "structured.query",
		trace.WithAttributes(
			attribute.String("autoswe.schema", s.Name()),
			attribute.Bool("autoswe.stream", true),
		))

	inner, err := q.Query(ctx, prompt, MergeOptions(base, s))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "structured query failed")
		span.End()
		return nil, err
	}

	return &Stream[T]{schema: s, inner: inner, span: span}, nil
}

// Next advances to the next event. Only the last result event carrying a
// payload gets a Result; a terminal payload that fails validation ends the
// stream with the validation error in Err.
func (s *Stream[T]) Next() bool {
	if s.done {
		return false
	}

	s.cur, s.result = nil, nil
	msg, ok := s.pull()
	if !ok {
		s.finish(s.inner.Err())
		return false
	}

	if hasPayload(msg) && !s.supersededLater() {
		res := msg.(*agent.ResultMessage)
		v, err := schema.Decode[T](s.schema, res.StructuredOutput)
		if err != nil {
			s.finish(err)
			return false
		}
		s.result = &v
		s.final = &v
	}
	s.cur = msg
	return true
}

// pull returns the next buffered or fresh event.
func (s *Stream[T]) pull() (agent.Message, bool) {
	if len(s.pending) > 0 {
		msg := s.pending[0]
		s.pending = s.pending[1:]
		return msg, true
	}
	if s.innerDone || !s.inner.Next() {
		s.innerDone = true
		return nil, false
	}
	return s.inner.Message(), true
}

// supersededLater reads ahead until another payload-carrying result or the
// end of the request, reporting whether one was found.
func (s *Stream[T]) supersededLater() bool {
	for _, msg := range s.pending {
		if hasPayload(msg) {
			return true
		}
	}
	for !s.innerDone {
		if !s.inner.Next() {
			s.innerDone = true
			break
		}
		msg := s.inner.Message()
		s.pending = append(s.pending, msg)
		if hasPayload(msg) {
			return true
		}
	}
	return false
}

func hasPayload(msg agent.Message) bool {
	res, ok := msg.(*agent.ResultMessage)
	return ok && present(res.StructuredOutput)
}

// Message returns the current event.
func (s *Stream[T]) Message() agent.Message {
	return s.cur
}

// Result returns the validated answer when the current event is the terminal
// result, or nil.
func (s *Stream[T]) Result() *T {
	return s.result
}

// Final returns the last validated answer seen so far.
func (s *Stream[T]) Final() (T, bool) {
	if s.final == nil {
		var zero T
		return zero, false
	}
	return *s.final, true
}

// Err returns the error that ended the stream, if any.
func (s *Stream[T]) Err() error {
	return s.err
}

// Close releases the underlying request.
func (s *Stream[T]) Close() error {
	s.finish(nil)
	return s.inner.Close()
}

func (s *Stream[T]) finish(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, "structured query failed")
	}
	s.span.End()
}
