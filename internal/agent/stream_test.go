// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	msgs   []Message
	err    error
	closes int
}

func (f *fakeSource) Recv() (Message, error) {
	if len(f.msgs) == 0 {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeSource) Close() error {
	f.closes++
	return nil
}

func TestMessageStream(t *testing.T) {
	src := &fakeSource{msgs: []Message{
		&SystemMessage{Subtype: "init"},
		nil,
		&ResultMessage{Subtype: "success"},
	}}
	s := NewMessageStream(src)

	var got []Message
	for s.Next() {
		got = append(got, s.Message())
	}

	require.NoError(t, s.Err())
	assert.Len(t, got, 2, "nil events are skipped")
	assert.False(t, s.Next(), "stream is not restartable")
	assert.Nil(t, s.Message())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, src.closes)
}

func TestMessageStreamError(t *testing.T) {
	boom := errors.New("boom")
	s := NewMessageStream(&fakeSource{msgs: []Message{&SystemMessage{}}, err: boom})

	assert.True(t, s.Next())
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.Err(), boom)
}

func TestMessageStreamClosedStopsIteration(t *testing.T) {
	s := NewMessageStream(&fakeSource{msgs: []Message{&SystemMessage{}}})
	require.NoError(t, s.Close())
	assert.False(t, s.Next())
}
