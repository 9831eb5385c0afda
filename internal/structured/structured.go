// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package structured issues agent requests whose final answer must match a
// JSON schema, and returns that answer as a validated value.
package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/noldarim/autoswe/internal/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrMissingOutput is returned when a request finishes without a structured payload.
var ErrMissingOutput = errors.New("no structured output received from query")

var tracer = otel.Tracer("github.com/noldarim/autoswe/internal/structured")

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetStructuredLogger()
		log = &l
	})
	return log
}

// MergeOptions returns base with its output format replaced by a json_schema
// directive for s. A nil base means empty options. base is never modified.
func MergeOptions(base *agent.Options, s *schema.Schema) agent.Options {
	var opts agent.Options
	if base != nil {
		opts = *base
	}
	return opts.WithOutputFormat(agent.OutputFormat{
		Type:   agent.OutputFormatJSONSchema,
		Schema: s.JSON(),
	})
}

// Query sends prompt with a schema derived from T and returns the validated answer.
func Query[T any](ctx context.Context, q agent.Querier, prompt string, base *agent.Options) (T, error) {
	var zero T

	s, err := schema.For[T]()
	if err != nil {
		return zero, err
	}

	payload, err := run(ctx, q, prompt, s, base)
	if err != nil {
		return zero, err
	}

	return schema.Decode[T](s, payload)
}

// QuerySchema is Query for schemas only known at run time. The answer is
// returned as a decoded JSON object.
func QuerySchema(ctx context.Context, q agent.Querier, prompt string, s *schema.Schema, base *agent.Options) (map[string]any, error) {
	payload, err := run(ctx, q, prompt, s, base)
	if err != nil {
		return nil, err
	}

	return schema.Decode[map[string]any](s, payload)
}

// run issues the request and returns the raw payload of the last result event
// that carried one.
func run(ctx context.Context, q agent.Querier, prompt string, s *schema.Schema, base *agent.Options) (payload json.RawMessage, err error) {
	ctx, span := tracer.Start(ctx, "structured.query",
		trace.WithAttributes(attribute.String("autoswe.schema", s.Name())))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "structured query failed")
		}
		span.End()
	}()

	opts := MergeOptions(base, s)

	stream, err := q.Query(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var (
		lastSubtype string
		sawResult   bool
	)
	for stream.Next() {
		res, ok := stream.Message().(*agent.ResultMessage)
		if !ok {
			continue
		}
		sawResult = true
		lastSubtype = res.Subtype
		if present(res.StructuredOutput) {
			payload = res.StructuredOutput
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	if payload == nil {
		getLog().Warn().Str("schema", s.Name()).Str("subtype", lastSubtype).Msg("Query finished without structured output")
		if sawResult {
			return nil, fmt.Errorf("%w (result subtype %q)", ErrMissingOutput, lastSubtype)
		}
		return nil, ErrMissingOutput
	}

	span.SetAttributes(attribute.Int("autoswe.payload_bytes", len(payload)))
	getLog().Debug().Str("schema", s.Name()).Int("payload_bytes", len(payload)).Msg("Received structured output")
	return payload, nil
}

// present reports whether a terminal payload carries an answer. Empty, null
// and empty-object payloads count as absent.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err == nil && len(obj) == 0 {
		return false
	}
	return true
}
