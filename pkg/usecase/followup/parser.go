package followup

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/parse.md
var parsePromptRaw string

var parsePromptTmpl = template.Must(template.New("parse").Parse(parsePromptRaw))

// meetingSchema describes the extraction result. With required set it is sent
// to the model; the lenient form validates what comes back.
func meetingSchema(required bool) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"subject":      {Type: "string", Description: "Short meeting title"},
			"participants": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Participant names or email addresses"},
			"summary":      {Type: "string", Description: "Two or three sentence summary"},
			"action_items": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Agreed follow-up tasks"},
			"start_time":   {Types: []string{"string", "null"}, Description: "ISO 8601 start time"},
			"end_time":     {Types: []string{"string", "null"}, Description: "ISO 8601 end time"},
		},
	}
	if required {
		s.Required = []string{"subject", "participants", "summary", "action_items", "start_time", "end_time"}
	}
	return s
}

// ParseMeetingLog extracts a structured meeting record with a single LLM call.
// Malformed model output is reported through ParseResult.Failure; only
// transport failures are returned as error.
func (u *UseCase) ParseMeetingLog(ctx context.Context, log string) (*model.ParseResult, error) {
	var buf bytes.Buffer
	if err := parsePromptTmpl.Execute(&buf, map[string]any{"Log": log}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute parse prompt template")
	}

	raw, err := u.llm.Generate(ctx, buf.String(), adapter.WithSchema(meetingSchema(true)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate meeting extraction")
	}

	return decodeMeeting(ctx, raw), nil
}

func decodeMeeting(ctx context.Context, raw string) *model.ParseResult {
	var meeting model.MeetingLog
	if err := adapter.DecodeStructured(meetingSchema(false), raw, &meeting); err != nil {
		logging.From(ctx).Warn("meeting log extraction returned malformed output", "error", err)
		return &model.ParseResult{
			Failure: &model.ParseFailure{
				Error:       err.Error(),
				RawResponse: raw,
			},
		}
	}

	return &model.ParseResult{Meeting: &meeting}
}
