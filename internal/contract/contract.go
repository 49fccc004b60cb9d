// Package contract describes the JSON shape a generation call must return
// and validates replies against it.
package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Contract names an output shape and carries its JSON schema.
type Contract struct {
	Name   string
	Schema map[string]any
}

// Validate checks a raw reply against the schema and returns the decoded document.
func (c Contract) Validate(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("empty structured output")
	}
	schema, err := c.compile()
	if err != nil {
		return nil, err
	}
	return c.check(schema, raw)
}

// Extract pulls the reply document out of model text. Models sometimes wrap
// the object in a markdown fence or a sentence of prose, so the bare text, each
// fenced block and the first balanced object are tried in turn. The first
// candidate that satisfies the schema wins.
func (c Contract) Extract(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty structured output")
	}
	schema, err := c.compile()
	if err != nil {
		return nil, err
	}

	var firstErr error
	for _, candidate := range candidates(text) {
		doc, err := c.check(schema, json.RawMessage(candidate))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		compact, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalize structured output: %w", err)
		}
		return compact, nil
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no JSON object in reply")
	}
	return nil, firstErr
}

func (c Contract) compile() (*jsonschema.Schema, error) {
	if c.Schema == nil {
		return nil, nil
	}
	schemaRaw, err := json.Marshal(c.Schema)
	if err != nil {
		return nil, fmt.Errorf("serialize %s schema: %w", c.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := c.Name + ".json"
	if err := compiler.AddResource(resource, bytes.NewReader(schemaRaw)); err != nil {
		return nil, fmt.Errorf("load %s schema: %w", c.Name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", c.Name, err)
	}
	return schema, nil
}

func (c Contract) check(schema *jsonschema.Schema, raw json.RawMessage) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	if schema == nil {
		return doc, nil
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("structured output does not match %s schema: %w", c.Name, err)
	}
	return doc, nil
}

var fenceExpr = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\n(.*?)```")

// candidates lists the spans of text that may hold the document, most literal first.
func candidates(text string) []string {
	out := []string{text}
	for _, m := range fenceExpr.FindAllStringSubmatch(text, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	if obj := balancedObject(text); obj != "" && obj != text {
		out = append(out, obj)
	}
	return out
}

// balancedObject returns the first {...} span whose braces balance outside of
// JSON strings, or "" if there is none.
func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// Object builds a closed object schema where every property is required.
func Object(properties map[string]any) map[string]any {
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	sort.Strings(required)

	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// String builds a string schema with a description.
func String(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// Array builds an array schema of items.
func Array(items map[string]any) map[string]any {
	return map[string]any{
		"type":  "array",
		"items": items,
	}
}

// RequireExactKeys checks that got has exactly the keys in want.
func RequireExactKeys[V any](got map[string]V, want []string) error {
	expected := make(map[string]struct{}, len(want))
	for _, k := range want {
		expected[k] = struct{}{}
	}

	var missing, extra []string
	for k := range expected {
		if _, ok := got[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range got {
		if _, ok := expected[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}

	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("result keys mismatch: %s", strings.Join(parts, "; "))
}
