/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var reasonPrinter = message.NewPrinter(language.English)

// OutputSchema declares the JSON shape a model call must return. It is
// reflected once from a Go struct; `json` tags name the properties and
// fields without omitempty are required.
type OutputSchema struct {
	Name   string
	Schema *jsonschema.Schema
	text   string
	check  *jsv.Schema
}

// SchemaFor reflects T into an OutputSchema named name.
func SchemaFor[T any](name string) *OutputSchema {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
		Anonymous:                 true,
	}
	var zero T
	s := r.Reflect(&zero)
	s.Version = ""
	s.Title = name
	bs, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		panic(fmt.Sprintf("marshal schema %s: %v", name, err))
	}
	check, err := compile(name, bs)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &OutputSchema{Name: name, Schema: s, text: string(bs), check: check}
}

func compile(name string, doc []byte) (*jsv.Schema, error) {
	v, err := jsv.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	url := "mem:///" + name + ".json"
	c := jsv.NewCompiler()
	c.DefaultDraft(jsv.Draft2020)
	if err := c.AddResource(url, v); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// String returns the indented JSON Schema document.
func (s *OutputSchema) String() string {
	return s.text
}

// FormatInstructions is appended to the system prompt so the model knows the
// exact shape to answer with.
func (s *OutputSchema) FormatInstructions() string {
	return "Respond with a single JSON object only, no prose, that conforms to this JSON Schema:\n" + s.text
}

// SchemaError reports model output that does not conform to the schema.
type SchemaError struct {
	Schema string
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("output %s: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("output %s: %s: %s", e.Schema, e.Path, e.Reason)
}

// Parse extracts the JSON object from raw model content (tolerating markdown
// fences and surrounding prose) and validates it.
func (s *OutputSchema) Parse(content string) (artifact.Record, error) {
	body, ok := extractJSONObject(content)
	if !ok {
		return nil, &SchemaError{Schema: s.Name, Reason: "no JSON object in model output"}
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, &SchemaError{Schema: s.Name, Reason: "malformed JSON: " + err.Error()}
	}
	if err := s.Validate(v); err != nil {
		return nil, err
	}
	return artifact.Record(v), nil
}

// Validate checks a decoded value against the schema. Values built in Go
// (records, typed slices) are normalized through JSON first.
func (s *OutputSchema) Validate(v map[string]any) error {
	bs, err := sonic.Marshal(v)
	if err != nil {
		return &SchemaError{Schema: s.Name, Reason: "unencodable value: " + err.Error()}
	}
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(bs))
	if err != nil {
		return &SchemaError{Schema: s.Name, Reason: "malformed JSON: " + err.Error()}
	}
	err = s.check.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsv.ValidationError)
	if !ok {
		return &SchemaError{Schema: s.Name, Reason: err.Error()}
	}
	// report the first leaf, the most specific violation
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	path := pointerPath(ve.InstanceLocation)
	if req, ok := ve.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		return &SchemaError{Schema: s.Name, Path: join(path, req.Missing[0]), Reason: "missing required property"}
	}
	return &SchemaError{Schema: s.Name, Path: path, Reason: ve.ErrorKind.LocalizedString(reasonPrinter)}
}

// pointerPath renders instance location tokens as a.b[0].c.
func pointerPath(tokens []string) string {
	var b strings.Builder
	for _, tok := range tokens {
		if _, err := strconv.Atoi(tok); err == nil {
			fmt.Fprintf(&b, "[%s]", tok)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// Example synthesizes a minimal value that satisfies the schema: booleans are
// true, numbers 100, arrays carry one element. The dry-run client uses it.
func (s *OutputSchema) Example() artifact.Record {
	v, _ := example(s.Schema, s.Name).(map[string]any)
	return artifact.Record(v)
}

func example(sc *jsonschema.Schema, name string) any {
	if sc == nil {
		return nil
	}
	switch sc.Type {
	case "object":
		out := map[string]any{}
		if sc.Properties != nil {
			for pair := sc.Properties.Oldest(); pair != nil; pair = pair.Next() {
				out[pair.Key] = example(pair.Value, pair.Key)
			}
		}
		return out
	case "array":
		return []any{example(sc.Items, name)}
	case "string":
		return "dry-run " + name
	case "boolean":
		return true
	case "number":
		return float64(100)
	case "integer":
		return float64(1)
	}
	return map[string]any{}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// extractJSONObject returns the outermost {...} span of content.
func extractJSONObject(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}
