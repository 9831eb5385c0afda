// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"errors"
	"io"
	"sync"
)

// MessageSource produces the events of one request. Recv returns io.EOF after
// the last event.
type MessageSource interface {
	Recv() (Message, error)
	Close() error
}

// MessageStream iterates over the events of one request.
//
//	for stream.Next() {
//		msg := stream.Message()
//	}
//	if err := stream.Err(); err != nil { ... }
//
// A stream is finite and cannot be restarted.
type MessageStream struct {
	src  MessageSource
	cur  Message
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// NewMessageStream wraps src in a MessageStream.
func NewMessageStream(src MessageSource) *MessageStream {
	return &MessageStream{src: src}
}

// Next advances to the next event, returning false at the end of the stream
// or on error.
func (s *MessageStream) Next() bool {
	if s.done {
		return false
	}
	for {
		msg, err := s.src.Recv()
		if err != nil {
			s.done = true
			s.cur = nil
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}
		if msg == nil {
			continue
		}
		s.cur = msg
		return true
	}
}

// Message returns the current event.
func (s *MessageStream) Message() Message {
	return s.cur
}

// Err returns the error that ended the stream, if any.
func (s *MessageStream) Err() error {
	return s.err
}

// Close releases the underlying request. It is safe to call more than once.
func (s *MessageStream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}
