package adapter

import (
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/gt"
	"google.golang.org/genai"
)

func testSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"subject": {Type: "string", Description: "meeting subject"},
			"start":   {Types: []string{"string", "null"}},
			"tags":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"kind":    {Type: "string", Enum: []any{"demo", "call"}},
		},
		Required: []string{"subject"},
	}
}

func TestConvertJSONSchemaToGenai(t *testing.T) {
	s, err := convertJSONSchemaToGenai(testSchema())
	gt.NoError(t, err)
	gt.Equal(t, s.Type, genai.TypeObject)
	gt.Equal(t, s.Required, []string{"subject"})
	gt.Equal(t, s.Properties["subject"].Description, "meeting subject")
	gt.Equal(t, s.Properties["start"].Type, genai.TypeString)
	gt.True(t, *s.Properties["start"].Nullable)
	gt.Equal(t, s.Properties["tags"].Items.Type, genai.TypeString)
	gt.Equal(t, s.Properties["kind"].Enum, []string{"demo", "call"})

	_, err = convertJSONSchemaToGenai(&jsonschema.Schema{Type: "tuple"})
	gt.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	testCases := map[string]struct {
		input string
		want  string
	}{
		"json fence":      {"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		"bare fence":      {"```\n{\"a\": 1}\n```", `{"a": 1}`},
		"no fence":        {"  {\"a\": 1}  ", `{"a": 1}`},
		"leading only":    {"```json {\"a\": 1}", `{"a": 1}`},
		"trailing only":   {"{\"a\": 1}\n```", `{"a": 1}`},
		"uppercase json":  {"```JSON\n[1]\n```", `[1]`},
		"inner backticks": {"```json\n{\"a\": \"`x`\"}\n```", "{\"a\": \"`x`\"}"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			gt.Equal(t, StripCodeFence(tc.input), tc.want)
		})
	}
}

func TestDecodeStructured(t *testing.T) {
	type out struct {
		Subject string   `json:"subject"`
		Start   string   `json:"start"`
		Tags    []string `json:"tags"`
	}

	t.Run("valid fenced response", func(t *testing.T) {
		var v out
		err := DecodeStructured(testSchema(), "```json\n{\"subject\":\"Demo\",\"start\":null,\"tags\":[\"a\"]}\n```", &v)
		gt.NoError(t, err)
		gt.Equal(t, v.Subject, "Demo")
		gt.Equal(t, v.Start, "")
		gt.Equal(t, v.Tags, []string{"a"})
	})

	t.Run("malformed JSON", func(t *testing.T) {
		var v out
		err := DecodeStructured(testSchema(), "Sure! Here it is: {subject: Demo", &v)
		gt.True(t, errors.Is(err, ErrInvalidJSON))
	})

	t.Run("schema violation", func(t *testing.T) {
		var v out
		err := DecodeStructured(testSchema(), `{"subject": 42}`, &v)
		gt.True(t, errors.Is(err, ErrSchemaViolation))
	})

	t.Run("missing required field", func(t *testing.T) {
		var v out
		err := DecodeStructured(testSchema(), `{"tags": []}`, &v)
		gt.True(t, errors.Is(err, ErrSchemaViolation))
	})
}
