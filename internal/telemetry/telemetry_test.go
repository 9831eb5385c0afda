// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"testing"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/agent/agenttest"
	"github.com/noldarim/autoswe/internal/config"
	"github.com/noldarim/autoswe/internal/structured"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type verdict struct {
	Approved bool `json:"approved"`
}

func TestInitDisabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInitRecordsStructuredSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		ServiceName: "autoswe-test",
		SampleRate:  1,
	}, WithExporter(exp), WithVersion("test"))
	require.NoError(t, err)

	q := agenttest.Messages(agenttest.Result(`{"approved":true}`))
	got, err := structured.Query[verdict](context.Background(), q, "ship it?", &agent.Options{})
	require.NoError(t, err)
	assert.True(t, got.Approved)

	// The in-memory exporter drops its spans on shutdown, so flush and read first
	tp, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	require.True(t, ok)
	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.NoError(t, shutdown(context.Background()))

	require.Len(t, spans, 1)
	assert.Equal(t, "structured.query", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "verdict", attrs["autoswe.schema"])

	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "autoswe-test", service)
}
