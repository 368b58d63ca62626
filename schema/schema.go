// Package schema validates decoded JSON request bodies against small,
// typed schemas before they are bound to student types.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Schema describes the accepted shape of a JSON value.
//
// Supported keywords are a subset of JSON Schema:
//   - type (string, number, integer, boolean, object, array)
//   - nullable (null is accepted in addition to type)
//   - properties, required (objects; unknown properties are ignored)
//   - items (arrays)
type Schema struct {
	Type       string
	Nullable   bool
	Properties map[string]*Schema
	Required   []string
	Items      *Schema
}

// Student is the body of a create request.
var Student = &Schema{
	Type: "object",
	Properties: map[string]*Schema{
		"name":     {Type: "string"},
		"age":      {Type: "integer"},
		"grade":    {Type: "string"},
		"subjects": {Type: "array", Items: &Schema{Type: "string"}},
	},
	Required: []string{"name", "age", "grade", "subjects"},
}

// StudentPatch is the body of an update request. Every field is optional
// and null means "leave unchanged".
var StudentPatch = &Schema{
	Type: "object",
	Properties: map[string]*Schema{
		"name":     {Type: "string", Nullable: true},
		"age":      {Type: "integer", Nullable: true},
		"grade":    {Type: "string", Nullable: true},
		"subjects": {Type: "array", Nullable: true, Items: &Schema{Type: "string"}},
	},
}

// Violation is one failed check.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Path + ": " + v.Message
}

// Violations is returned by Validate when a value does not conform.
type Violations []Violation

func (vs Violations) Error() string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// Validate checks value, as produced by encoding/json decoding into an
// any, against s. It returns nil or a Violations error listing every
// failing path. A nil schema accepts everything.
func Validate(s *Schema, value any) error {
	if s == nil {
		return nil
	}
	var vs Violations
	check(s, value, "$", &vs)
	if len(vs) == 0 {
		return nil
	}
	return vs
}

func check(s *Schema, value any, path string, vs *Violations) {
	if value == nil {
		if !s.Nullable && s.Type != "" {
			*vs = append(*vs, Violation{path, fmt.Sprintf("expected type %q, got \"null\"", s.Type)})
		}
		return
	}
	if s.Type != "" && !matches(s.Type, value) {
		*vs = append(*vs, Violation{path, fmt.Sprintf("expected type %q, got %q", s.Type, jsonType(value))})
		return
	}

	switch v := value.(type) {
	case map[string]any:
		for _, field := range s.Required {
			if _, ok := v[field]; !ok {
				*vs = append(*vs, Violation{path, fmt.Sprintf("missing required field %q", field)})
			}
		}
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if fv, ok := v[name]; ok {
				check(s.Properties[name], fv, path+"."+name, vs)
			}
		}
	case []any:
		if s.Items != nil {
			for i, elem := range v {
				check(s.Items, elem, fmt.Sprintf("%s[%d]", path, i), vs)
			}
		}
	}
}

func matches(expected string, value any) bool {
	actual := jsonType(value)
	switch expected {
	case "integer":
		f, ok := toFloat(value)
		return ok && f == math.Trunc(f) && !math.IsInf(f, 0)
	case "number":
		return actual == "number"
	default:
		return actual == expected
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
