package followup_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/m-mizutani/gt"
)

type mockLLM struct {
	generateFunc func(ctx context.Context, prompt string, cfg *adapter.GenerateConfig) (string, error)
	prompts      []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ...adapter.GenerateOption) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.generateFunc(ctx, prompt, adapter.NewGenerateConfig(opts...))
}

// scriptedLLM answers the extraction call with parsed and any other call with email
func scriptedLLM(parsed, email string) *mockLLM {
	return &mockLLM{
		generateFunc: func(ctx context.Context, prompt string, cfg *adapter.GenerateConfig) (string, error) {
			if cfg.Schema != nil {
				return parsed, nil
			}
			return email, nil
		},
	}
}

type mockCalendar struct {
	listFunc func(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error)
}

func (m *mockCalendar) ListUpcomingEvents(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error) {
	return m.listFunc(ctx, maxResults)
}

func (m *mockCalendar) AddEvent(ctx context.Context, meeting *model.MeetingLog, attendees []string) (*model.CalendarEvent, error) {
	return nil, errors.New("not implemented")
}

type mockRetriever struct {
	queryFunc func(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error)
	calls     int
}

func (m *mockRetriever) Query(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error) {
	m.calls++
	return m.queryFunc(ctx, text, topK)
}

const sarahLog = "Met with Sarah and James from Acme on March 10 at 2pm. We covered the Slack integration and walked through pricing tiers. Next steps: send slide deck, book support call."

const sarahParsed = "```json\n" + `{
  "subject": "Slack integration discussion with Acme",
  "participants": ["Sarah", "James"],
  "summary": "Reviewed the Slack integration and pricing tiers with Acme.",
  "action_items": ["Send slide deck", "Book support call"],
  "start_time": "2025-03-10T14:05:00Z",
  "end_time": null
}` + "\n```"

func sarahCalendar() *mockCalendar {
	return &mockCalendar{
		listFunc: func(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error) {
			return []*model.CalendarEvent{
				{
					Summary:   "Slack integration discussion",
					Start:     "2025-03-10T14:00:00Z",
					End:       "2025-03-10T14:30:00Z",
					Attendees: []model.Attendee{{Email: "sarah@x.com", DisplayName: "Sarah"}},
				},
				{
					Summary: "Weekly team sync",
					Start:   "2025-03-11T09:00:00Z",
					End:     "2025-03-11T09:30:00Z",
				},
			}, nil
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	ctx := context.Background()
	llm := scriptedLLM(sarahParsed, "Hi Sarah and James, ...")
	retriever := &mockRetriever{
		queryFunc: func(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error) {
			gt.Equal(t, text, "Reviewed the Slack integration and pricing tiers with Acme.")
			gt.Equal(t, topK, 3)
			return []*model.RetrievedDocument{{Text: "Slack integration FAQ", Distance: 0.2}}, nil
		},
	}

	uc := followup.New(llm,
		followup.WithCalendar(sarahCalendar()),
		followup.WithRetriever(retriever),
		followup.WithUserName("Alex"),
		followup.WithMode(followup.ModeResolve),
	)

	result, err := uc.Run(ctx, sarahLog)
	gt.NoError(t, err)
	gt.False(t, result.Degraded())

	gt.True(t, result.Resolved.Found)
	gt.Equal(t, result.Resolved.Source, model.EventSourceCalendar)
	gt.Equal(t, result.Resolved.Emails, []string{"sarah@x.com"})

	gt.A(t, result.Events).Length(1)
	gt.A(t, result.Documents).Length(1)
	gt.Equal(t, result.Response, "Hi Sarah and James, ...")

	gt.A(t, llm.prompts).Length(2)
	gt.S(t, llm.prompts[0]).Contains(sarahLog)
	gt.Equal(t, llm.prompts[1], result.Prompt)
	gt.S(t, result.Prompt).Contains("- Slack integration discussion (2025-03-10T14:00:00Z to 2025-03-10T14:30:00Z)")
	gt.S(t, result.Prompt).NotContains("Weekly team sync")
	gt.S(t, result.Prompt).Contains("1. Slack integration FAQ")
	gt.S(t, result.Prompt).Contains("- Book support call")
}

func TestRunUpcomingMode(t *testing.T) {
	var requested int
	cal := sarahCalendar()
	list := cal.listFunc
	cal.listFunc = func(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error) {
		requested = maxResults
		return list(ctx, maxResults)
	}

	uc := followup.New(scriptedLLM(sarahParsed, "email"), followup.WithCalendar(cal))
	result, err := uc.Run(context.Background(), sarahLog)
	gt.NoError(t, err)
	gt.Equal(t, requested, 3)
	gt.A(t, result.Events).Length(2)
	gt.S(t, result.Prompt).Contains("Weekly team sync")
	gt.True(t, result.Resolved.Found)
	gt.A(t, result.Documents).Length(0)
}

func TestRunContinuesAfterParseFailure(t *testing.T) {
	retriever := &mockRetriever{
		queryFunc: func(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error) {
			return nil, nil
		},
	}
	uc := followup.New(scriptedLLM("I could not find a meeting here.", "generic email"),
		followup.WithRetriever(retriever))

	result, err := uc.Run(context.Background(), "???")
	gt.NoError(t, err)
	gt.True(t, result.Degraded())
	gt.NotNil(t, result.ParseFailure)
	gt.Equal(t, result.ParseFailure.RawResponse, "I could not find a meeting here.")
	gt.Equal(t, result.Resolved.Source, model.EventSourceLogOnly)
	gt.Equal(t, retriever.calls, 0)
	gt.S(t, result.Prompt).Contains("Meeting Participants: the client")
	gt.S(t, result.Prompt).Contains("Meeting Summary: No summary provided.")
	gt.Equal(t, result.Response, "generic email")
}

func TestRunStrictParse(t *testing.T) {
	llm := scriptedLLM("not json", "unused")
	uc := followup.New(llm, followup.WithStrictParse(true))

	result, err := uc.Run(context.Background(), "???")
	gt.True(t, errors.Is(err, followup.ErrMeetingParse))
	gt.NotNil(t, result.ParseFailure)
	gt.Equal(t, result.Prompt, "")
	gt.A(t, llm.prompts).Length(1)
}

func TestRunCalendarErrorIsRecorded(t *testing.T) {
	cal := &mockCalendar{
		listFunc: func(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error) {
			return nil, errors.New("calendar API unavailable")
		},
	}

	uc := followup.New(scriptedLLM(sarahParsed, "email"), followup.WithCalendar(cal))
	result, err := uc.Run(context.Background(), sarahLog)
	gt.NoError(t, err)
	gt.True(t, result.Degraded())
	gt.S(t, result.CalendarError).Contains("calendar API unavailable")
	gt.False(t, result.Resolved.Found)
	gt.A(t, result.Events).Length(0)
}

func TestRunRetrievalErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{
		queryFunc: func(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error) {
			return nil, errors.New("index unreadable")
		},
	}

	uc := followup.New(scriptedLLM(sarahParsed, "email"), followup.WithRetriever(retriever))
	result, err := uc.Run(context.Background(), sarahLog)
	gt.Error(t, err)
	gt.NotNil(t, result.Resolved)
	gt.Equal(t, result.Response, "")
}

func TestRunLLMTimeout(t *testing.T) {
	blocking := &mockLLM{
		generateFunc: func(ctx context.Context, prompt string, cfg *adapter.GenerateConfig) (string, error) {
			if cfg.Schema != nil {
				return sarahParsed, nil
			}
			<-ctx.Done()
			return "", ctx.Err()
		},
	}

	uc := followup.New(adapter.NewTimeoutLLM(blocking, 20*time.Millisecond))
	result, err := uc.Run(context.Background(), sarahLog)
	gt.True(t, errors.Is(err, adapter.ErrLLMTimeout))
	gt.True(t, strings.Contains(result.Prompt, "Slack integration"))
	gt.Equal(t, result.Response, "")
}
