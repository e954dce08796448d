package adapter

import (
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

var (
	ErrInvalidJSON     = goerr.New("response is not valid JSON")
	ErrSchemaViolation = goerr.New("response does not match schema")
)

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{}

	typeName := schema.Type
	if typeName == "" {
		// ["string", "null"] style unions become a nullable scalar
		for _, t := range schema.Types {
			if t == "null" {
				nullable := true
				genaiSchema.Nullable = &nullable
				continue
			}
			typeName = t
		}
	}

	switch typeName {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	case "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", typeName))
	}

	genaiSchema.Description = schema.Description

	if len(schema.Enum) > 0 {
		genaiSchema.Enum = make([]string, 0, len(schema.Enum))
		for _, v := range schema.Enum {
			if s, ok := v.(string); ok {
				genaiSchema.Enum = append(genaiSchema.Enum, s)
			}
		}
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}

// StripCodeFence removes a leading ``` or ```json fence line marker and a trailing ``` marker
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = s[len("```json"):]
	case strings.HasPrefix(s, "```JSON"):
		s = s[len("```JSON"):]
	case strings.HasPrefix(s, "```"):
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// DecodeStructured validates raw against schema and decodes it into v.
// Fence markers around raw are tolerated.
func DecodeStructured(schema *jsonschema.Schema, raw string, v any) error {
	cleaned := StripCodeFence(raw)

	var instance any
	if err := json.Unmarshal([]byte(cleaned), &instance); err != nil {
		return goerr.Wrap(ErrInvalidJSON, err.Error(), goerr.V("response", raw))
	}

	if schema != nil {
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return goerr.Wrap(err, "failed to resolve schema")
		}
		if err := resolved.Validate(instance); err != nil {
			return goerr.Wrap(ErrSchemaViolation, err.Error(), goerr.V("response", raw))
		}
	}

	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return goerr.Wrap(ErrInvalidJSON, err.Error(), goerr.V("response", raw))
	}

	return nil
}

// schemaInstruction renders schema as a prompt suffix for providers without native structured output
func schemaInstruction(schema *jsonschema.Schema) (string, error) {
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal response schema")
	}
	return "Respond with only a JSON object that conforms to this JSON Schema. Do not wrap it in markdown.\n" + string(raw), nil
}
