// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"

	"github.com/noldarim/autoswe/internal/agent"
	"github.com/noldarim/autoswe/internal/display"
	"github.com/noldarim/autoswe/internal/logger"
	"github.com/noldarim/autoswe/internal/schema"
	"github.com/noldarim/autoswe/internal/structured"
)

const defaultAskPrompt = "Tell me about Anthropic, the AI company."

// CompanyInfo is the answer shape used when ask runs without --schema.
type CompanyInfo struct {
	Name         string   `json:"name" jsonschema:"description=The company name"`
	FoundedYear  int      `json:"founded_year" jsonschema:"description=Year the company was founded"`
	Headquarters string   `json:"headquarters" jsonschema:"description=Location of headquarters"`
	KeyProducts  []string `json:"key_products" jsonschema:"description=Main products or services"`
}

type askOptions struct {
	schemaPath string
	stream     bool
	asJSON     bool
	configPath string
	model      string
	noColor    bool
}

func (a *app) askCommand(args []string) error {
	opts := &askOptions{}
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&opts.schemaPath, "schema", "", "JSON or YAML schema file describing the answer")
	fs.BoolVar(&opts.stream, "stream", false, "Show agent activity while waiting for the answer")
	fs.BoolVar(&opts.asJSON, "json", false, "Print the answer as JSON")
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.model, "model", "", "Model override")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if prompt == "" {
		prompt = defaultAskPrompt
	}

	sess, err := a.startSession(opts.configPath)
	if err != nil {
		return err
	}
	defer sess.close()

	base := agentOptions(sess.cfg.Agent)
	if opts.model != "" {
		base.Model = opts.model
	}
	q := a.newQuerier(sess.cfg)

	l := logger.GetCLILogger()
	l.Info().Str("schema", opts.schemaPath).Bool("stream", opts.stream).Msg("Running ask")

	if opts.schemaPath != "" {
		s, err := schema.Load(opts.schemaPath)
		if err != nil {
			return err
		}
		answer, err := a.askDynamic(sess.ctx, q, prompt, s, &base, opts)
		if err != nil {
			return err
		}
		return a.printJSON(answer)
	}

	info, err := a.askCompany(sess.ctx, q, prompt, &base, opts)
	if err != nil {
		return err
	}
	if opts.asJSON {
		return a.printJSON(info)
	}

	p := a.printer(opts.noColor)
	p.Plain("Company: %s", info.Name)
	p.Plain("Founded: %d", info.FoundedYear)
	p.Plain("HQ: %s", info.Headquarters)
	p.Plain("Products: %s", strings.Join(info.KeyProducts, ", "))
	return nil
}

func (a *app) askCompany(ctx context.Context, q agent.Querier, prompt string, base *agent.Options, opts *askOptions) (CompanyInfo, error) {
	if !opts.stream {
		return structured.Query[CompanyInfo](ctx, q, prompt, base)
	}

	stream, err := structured.QueryStream[CompanyInfo](ctx, q, prompt, base)
	if err != nil {
		return CompanyInfo{}, err
	}
	return drain(stream, a.printer(opts.noColor, display.WithTextEnd("\n")))
}

func (a *app) askDynamic(ctx context.Context, q agent.Querier, prompt string, s *schema.Schema, base *agent.Options, opts *askOptions) (map[string]any, error) {
	if !opts.stream {
		return structured.QuerySchema(ctx, q, prompt, s, base)
	}

	stream, err := structured.QuerySchemaStream(ctx, q, prompt, s, base)
	if err != nil {
		return nil, err
	}
	return drain(stream, a.printer(opts.noColor, display.WithTextEnd("\n")))
}

// drain renders every event and returns the final answer.
func drain[T any](stream *structured.Stream[T], p *display.Printer) (T, error) {
	defer stream.Close()

	for stream.Next() {
		p.Print(stream.Message())
	}
	if err := stream.Err(); err != nil {
		var zero T
		return zero, err
	}

	final, ok := stream.Final()
	if !ok {
		return final, structured.ErrMissingOutput
	}
	return final, nil
}

func (a *app) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}
	fmt.Fprintln(a.stdout, string(out))
	return nil
}
