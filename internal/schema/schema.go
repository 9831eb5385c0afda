// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package schema derives JSON-Schema descriptors from Go types or schema
// documents and validates payloads against them.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Schema is a compiled JSON-Schema descriptor. It is immutable and safe for
// concurrent use.
type Schema struct {
	name     string
	doc      json.RawMessage
	compiled *jsonschema.Schema
}

var (
	cache   sync.Map // reflect.Type -> *Schema
	printer = message.NewPrinter(language.English)
)

// For derives the schema of T. Fields without omitempty are required and
// unknown properties are rejected. Descriptions come from jsonschema struct tags.
func For[T any]() (*Schema, error) {
	t := reflect.TypeFor[T]()
	if cached, ok := cache.Load(t); ok {
		return cached.(*Schema), nil
	}

	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %s is not a struct type", t)
	}

	r := &invopop.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	reflected := r.ReflectFromType(base)
	reflected.ID = ""

	doc, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to marshal schema for %s: %w", t, err)
	}

	s, err := compile(base.Name(), doc)
	if err != nil {
		return nil, err
	}

	actual, _ := cache.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

// FromJSON builds a schema from a JSON-Schema document.
func FromJSON(name string, doc []byte) (*Schema, error) {
	var compact bytes.Buffer
	if err := json.Compact(&compact, doc); err != nil {
		return nil, fmt.Errorf("schema %q: invalid JSON document: %w", name, err)
	}
	return compile(name, compact.Bytes())
}

// FromYAML builds a schema from a JSON-Schema document written in YAML.
func FromYAML(name string, doc []byte) (*Schema, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("schema %q: invalid YAML document: %w", name, err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("schema %q: document is not representable as JSON: %w", name, err)
	}
	return compile(name, raw)
}

// Load reads a schema file, choosing the decoder by extension (.yaml/.yml or JSON).
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(name, data)
	default:
		return FromJSON(name, data)
	}
}

func compile(name string, doc []byte) (*Schema, error) {
	if name == "" {
		name = "schema"
	}

	var top map[string]any
	if err := json.Unmarshal(doc, &top); err != nil {
		return nil, fmt.Errorf("schema %q: document must be a JSON object: %w", name, err)
	}
	// Payloads decode into records, so the described value must be an object
	if typ, _ := top["type"].(string); typ != "object" {
		return nil, fmt.Errorf("schema %q: top-level type must be \"object\", got %v", name, top["type"])
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}

	resource := "mem://autoswe/" + url.PathEscape(name) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, parsed); err != nil {
		return nil, fmt.Errorf("schema %q: %w", name, err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("schema %q: failed to compile: %w", name, err)
	}

	return &Schema{name: name, doc: doc, compiled: compiled}, nil
}

// Name returns the schema's name, the Go type name for reflected schemas.
func (s *Schema) Name() string {
	return s.name
}

// JSON returns the compact schema document.
func (s *Schema) JSON() json.RawMessage {
	return append(json.RawMessage(nil), s.doc...)
}

// Properties returns the sorted top-level property names.
func (s *Schema) Properties() []string {
	var top struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(s.doc, &top); err != nil {
		return nil
	}
	props := make([]string, 0, len(top.Properties))
	for p := range top.Properties {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

// ValidationError reports a payload that does not match its schema.
type ValidationError struct {
	Schema string
	Fields []string // Failing field paths, e.g. "founded_year" or "key_products/0/name"
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload does not match schema %q: %s", e.Schema, e.Detail)
}

// Validate checks payload against the schema, returning *ValidationError on mismatch.
func (s *Schema) Validate(payload []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return &ValidationError{Schema: s.name, Detail: fmt.Sprintf("invalid JSON: %v", err)}
	}

	err = s.compiled.Validate(inst)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema %q: %w", s.name, err)
	}

	var (
		fields  []string
		details []string
		seen    = map[string]bool{}
	)
	for _, leaf := range leaves(verr) {
		loc := strings.Join(leaf.InstanceLocation, "/")
		for _, f := range leafFields(leaf) {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
		msg := leaf.ErrorKind.LocalizedString(printer)
		if loc != "" {
			msg = loc + ": " + msg
		}
		details = append(details, msg)
	}

	return &ValidationError{
		Schema: s.name,
		Fields: fields,
		Detail: strings.Join(details, "; "),
	}
}

// leaves flattens the cause tree to the errors that carry no further causes.
func leaves(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// leafFields names the fields a leaf error is about. Missing and unexpected
// properties are reported at the parent object, so the property names are
// appended to the location.
func leafFields(e *jsonschema.ValidationError) []string {
	join := func(prop string) string {
		return strings.Join(append(append([]string{}, e.InstanceLocation...), prop), "/")
	}

	switch k := e.ErrorKind.(type) {
	case *kind.Required:
		out := make([]string, 0, len(k.Missing))
		for _, p := range k.Missing {
			out = append(out, join(p))
		}
		return out
	case *kind.AdditionalProperties:
		out := make([]string, 0, len(k.Properties))
		for _, p := range k.Properties {
			out = append(out, join(p))
		}
		return out
	}

	if len(e.InstanceLocation) == 0 {
		return nil
	}
	return []string{strings.Join(e.InstanceLocation, "/")}
}

// Decode validates payload and unmarshals it into a T.
func Decode[T any](s *Schema, payload []byte) (T, error) {
	var v T
	if err := s.Validate(payload); err != nil {
		return v, err
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("failed to decode payload into %T: %w", v, err)
	}
	return v, nil
}
