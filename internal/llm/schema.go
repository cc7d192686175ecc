package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// jsonSchema is the subset of JSON Schema the plan schemas use.
type jsonSchema struct {
	Ref                  string                 `json:"$ref"`
	Type                 string                 `json:"type"`
	Description          string                 `json:"description"`
	Enum                 []string               `json:"enum"`
	Properties           map[string]*jsonSchema `json:"properties"`
	Required             []string               `json:"required"`
	Items                *jsonSchema            `json:"items"`
	AdditionalProperties json.RawMessage        `json:"additionalProperties"`
	PropertyNames        *jsonSchema            `json:"propertyNames"`
	Definitions          map[string]*jsonSchema `json:"definitions"`
}

// GeminiSchema converts a JSON Schema document into the OpenAPI subset Gemini
// accepts as a response schema. References are inlined. A map whose keys are
// restricted by propertyNames becomes an object with one optional property per
// allowed key, since Gemini has no additionalProperties.
func GeminiSchema(raw []byte) (*genai.Schema, error) {
	var root jsonSchema
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse JSON schema: %w", err)
	}
	c := converter{defs: root.Definitions}
	return c.convert(&root, 0)
}

type converter struct {
	defs map[string]*jsonSchema
}

const maxSchemaDepth = 32

func (c converter) convert(s *jsonSchema, depth int) (*genai.Schema, error) {
	if depth > maxSchemaDepth {
		return nil, fmt.Errorf("schema nesting deeper than %d", maxSchemaDepth)
	}
	if s.Ref != "" {
		name := strings.TrimPrefix(s.Ref, "#/definitions/")
		def, ok := c.defs[name]
		if !ok {
			return nil, fmt.Errorf("unresolved schema reference %q", s.Ref)
		}
		return c.convert(def, depth+1)
	}

	out := &genai.Schema{Description: s.Description}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
		out.Enum = s.Enum
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		if len(s.Enum) == 0 {
			return nil, fmt.Errorf("unsupported schema type %q", s.Type)
		}
		out.Type = genai.TypeString
		out.Enum = s.Enum
	}

	if s.Items != nil {
		items, err := c.convert(s.Items, depth+1)
		if err != nil {
			return nil, err
		}
		out.Items = items
	}

	if out.Type != genai.TypeObject {
		return out, nil
	}

	out.Properties = make(map[string]*genai.Schema, len(s.Properties))
	for name, prop := range s.Properties {
		p, err := c.convert(prop, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out.Properties[name] = p
	}
	out.Required = append(out.Required, s.Required...)

	if s.PropertyNames != nil && len(s.PropertyNames.Enum) > 0 && isSchemaObject(s.AdditionalProperties) {
		var value jsonSchema
		if err := json.Unmarshal(s.AdditionalProperties, &value); err != nil {
			return nil, fmt.Errorf("additionalProperties: %w", err)
		}
		for _, key := range s.PropertyNames.Enum {
			p, err := c.convert(&value, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out.Properties[key] = p
		}
	}
	sort.Strings(out.Required)
	return out, nil
}

func isSchemaObject(raw json.RawMessage) bool {
	t := strings.TrimSpace(string(raw))
	return strings.HasPrefix(t, "{")
}
