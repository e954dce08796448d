package followup

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/email.md
var emailPromptRaw string

var emailPromptTmpl = template.Must(template.New("email").Parse(emailPromptRaw))

const (
	// MaxPromptDocuments caps retrieved documents rendered into a prompt
	MaxPromptDocuments = 5

	fallbackParticipants = "the client"
	fallbackSummary      = "No summary provided."
)

type promptDocument struct {
	Number int
	Text   string
}

// BuildPrompt renders the follow-up email prompt. It has no side effects:
// equal arguments always produce the same string.
func BuildPrompt(meeting *model.MeetingLog, events []*model.CalendarEvent, docs []*model.RetrievedDocument, userName string) (string, error) {
	if meeting == nil {
		meeting = &model.MeetingLog{}
	}

	participants := meeting.ParticipantList()
	if participants == "" {
		participants = fallbackParticipants
	}

	summary := strings.TrimSpace(meeting.Summary)
	if summary == "" {
		summary = fallbackSummary
	}

	if strings.TrimSpace(userName) == "" {
		userName = DefaultUserName
	}

	var rendered []*model.CalendarEvent
	for _, ev := range events {
		if ev != nil {
			rendered = append(rendered, ev)
		}
	}

	var documents []promptDocument
	for _, d := range docs {
		if len(documents) == MaxPromptDocuments {
			break
		}
		if d == nil {
			continue
		}
		documents = append(documents, promptDocument{Number: len(documents) + 1, Text: d.Text})
	}

	var buf bytes.Buffer
	if err := emailPromptTmpl.Execute(&buf, map[string]any{
		"Participants": participants,
		"Summary":      summary,
		"ActionItems":  meeting.ActionItems,
		"Events":       rendered,
		"Documents":    documents,
		"UserName":     userName,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute email prompt template")
	}

	return buf.String(), nil
}
