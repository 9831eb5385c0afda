// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package refactor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/agent/agenttest"
	"github.com/noldarim/autoswe/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func performed(text string) agenttest.Response {
	return agenttest.Response{Messages: []agent.Message{agenttest.Text(text), agenttest.ResultText("committed")}}
}

func TestLoopConverges(t *testing.T) {
	q := agenttest.New(
		performed("Extracted helper"),
		performed("Renamed package"),
		agenttest.Response{Messages: []agent.Message{
			agenttest.Text("Nothing left. "),
			agenttest.ResultText(config.DefaultRefactorMarker),
		}},
		performed("never reached"),
	)
	var out bytes.Buffer

	l := NewLoop(q, &out, config.RefactorConfig{MaxIterations: 5, Prompt: "refactor it", Marker: config.DefaultRefactorMarker}, agent.Options{Model: "m"})
	l.NoColor = true
	outcome, err := l.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Outcome{Iterations: 3, Converged: true}, outcome)

	calls := q.Calls()
	require.Len(t, calls, 3)
	for _, c := range calls {
		assert.Equal(t, "refactor it", c.Prompt)
		assert.Equal(t, "m", c.Options.Model)
	}

	text := out.String()
	assert.Contains(t, text, "Iteration 1/5")
	assert.Contains(t, text, "Iteration 3/5")
	assert.NotContains(t, text, "Iteration 4/5")
	assert.Contains(t, text, "Refactoring performed. Continuing...")
	assert.Contains(t, text, "✨ No more refactoring needed. Done!")
	assert.Equal(t, 3, q.Closed())
}

func TestLoopMarkerInTextBlock(t *testing.T) {
	q := agenttest.New(agenttest.Response{Messages: []agent.Message{
		agenttest.Text("<promise>NO REFACTORING"),
		agenttest.Text(" NEEDED</promise>"),
	}})

	l := &Loop{Querier: q, MaxIterations: 2, NoColor: true}
	outcome, err := l.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Converged, "collected text is joined before matching")
	assert.Equal(t, 1, outcome.Iterations)
}

func TestLoopHitsCap(t *testing.T) {
	q := agenttest.New(performed("a"), performed("b"))
	var out bytes.Buffer

	l := &Loop{Querier: q, Out: &out, MaxIterations: 2, NoColor: true}
	outcome, err := l.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Outcome{Iterations: 2}, outcome)
	assert.Contains(t, out.String(), "Reached max iterations (2)")
	assert.Equal(t, config.DefaultRefactorPrompt, q.Calls()[0].Prompt)
}

func TestLoopPropagatesErrors(t *testing.T) {
	boom := errors.New("agent crashed")

	t.Run("query error", func(t *testing.T) {
		q := agenttest.New(performed("a"), agenttest.Response{Err: boom})
		l := &Loop{Querier: q, MaxIterations: 5}
		outcome, err := l.Run(context.Background())

		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "iteration 2")
		assert.Equal(t, 2, outcome.Iterations)
		assert.False(t, outcome.Converged)
	})

	t.Run("stream error", func(t *testing.T) {
		q := agenttest.New(agenttest.Response{Messages: []agent.Message{agenttest.Text("x")}, StreamErr: boom})
		l := &Loop{Querier: q, MaxIterations: 5}
		_, err := l.Run(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "iteration 1")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := &Loop{Querier: agenttest.New(), MaxIterations: 5}
		outcome, err := l.Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, outcome.Iterations)
	})
}

func TestLoopRejectsInvalidConfig(t *testing.T) {
	_, err := (&Loop{Querier: agenttest.New(), MaxIterations: 0}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max iterations must be at least 1")

	_, err = (&Loop{MaxIterations: 1}).Run(context.Background())
	assert.Error(t, err)
}
