// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/agent/agenttest"
	"github.com/noldarim/autoswe/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryStreamPairsResult(t *testing.T) {
	q := agenttest.Messages(
		&agent.SystemMessage{Subtype: "init"},
		agenttest.Text("thinking about Acme"),
		agenttest.Result(acme),
	)

	s, err := QueryStream[companyInfo](context.Background(), q, "q", nil)
	require.NoError(t, err)
	defer s.Close()

	var (
		events  int
		results []*companyInfo
	)
	for s.Next() {
		events++
		require.NotNil(t, s.Message())
		results = append(results, s.Result())
	}
	require.NoError(t, s.Err())

	assert.Equal(t, 3, events)
	assert.Nil(t, results[0])
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
	assert.Equal(t, "Acme", results[2].Name)

	final, ok := s.Final()
	assert.True(t, ok)
	assert.Equal(t, 1999, final.FoundedYear)

	assert.False(t, s.Next(), "stream is finite")
}

func TestQueryStreamOnlyLastResultCarriesAnswer(t *testing.T) {
	q := agenttest.Messages(
		agenttest.Result(`{"name":"Draft"}`),
		agenttest.Text("revising"),
		agenttest.Result(acme),
	)

	s, err := QueryStream[companyInfo](context.Background(), q, "q", nil)
	require.NoError(t, err)
	defer s.Close()

	var results []*companyInfo
	for s.Next() {
		results = append(results, s.Result())
	}
	require.NoError(t, s.Err(), "the superseded payload is not validated")

	require.Len(t, results, 3)
	assert.Nil(t, results[0])
	assert.Nil(t, results[1])
	require.NotNil(t, results[2])
	assert.Equal(t, "Acme", results[2].Name)

	final, ok := s.Final()
	require.True(t, ok)
	assert.Equal(t, "Acme", final.Name)
}

func TestQueryStreamWithoutPayload(t *testing.T) {
	q := agenttest.Messages(agenttest.Text("hi"), agenttest.ResultText("done"))

	s, err := QueryStream[companyInfo](context.Background(), q, "q", nil)
	require.NoError(t, err)
	defer s.Close()

	for s.Next() {
		assert.Nil(t, s.Result())
	}
	assert.NoError(t, s.Err())
	_, ok := s.Final()
	assert.False(t, ok)
}

func TestQueryStreamValidationFailure(t *testing.T) {
	q := agenttest.Messages(
		agenttest.Text("hi"),
		agenttest.Result(`{"name":"Acme","founded_year":"nineteen","headquarters":"X","key_products":[]}`),
		agenttest.Text("never seen"),
	)

	s, err := QueryStream[companyInfo](context.Background(), q, "q", nil)
	require.NoError(t, err)
	defer s.Close()

	events := 0
	for s.Next() {
		events++
	}
	assert.Equal(t, 1, events, "the invalid terminal event is not yielded")

	var verr *schema.ValidationError
	require.ErrorAs(t, s.Err(), &verr)
	assert.Contains(t, verr.Fields, "founded_year")
}

func TestQueryStreamErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := QueryStream[companyInfo](context.Background(), agenttest.New(agenttest.Response{Err: boom}), "q", nil)
	assert.Same(t, boom, err)

	q := agenttest.New(agenttest.Response{Messages: []agent.Message{agenttest.Text("a")}, StreamErr: boom})
	s, err := QueryStream[companyInfo](context.Background(), q, "q", nil)
	require.NoError(t, err)
	for s.Next() {
	}
	assert.Same(t, boom, s.Err())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, q.Closed())
}

func TestQuerySchemaStream(t *testing.T) {
	s, err := schema.FromYAML("verdict", []byte("type: object\nproperties:\n  approved:\n    type: boolean\nrequired: [approved]\n"))
	require.NoError(t, err)

	q := agenttest.Messages(agenttest.Text("checking"), agenttest.Result(`{"approved":false}`))
	stream, err := QuerySchemaStream(context.Background(), q, "q", s, nil)
	require.NoError(t, err)
	defer stream.Close()

	for stream.Next() {
	}
	require.NoError(t, stream.Err())

	final, ok := stream.Final()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"approved": false}, final)
	assert.JSONEq(t, string(s.JSON()), string(q.Calls()[0].Options.OutputFormat.Schema))
}
