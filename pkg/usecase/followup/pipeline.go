package followup

import (
	"context"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var ErrMeetingParse = goerr.New("failed to parse meeting log")

// Result carries every artifact of one pipeline run. Stages fill their own
// fields in order; a run that fails midway returns the fields produced so far.
type Result struct {
	// Meeting is the parsed record, or an empty one when ParseFailure is set
	Meeting      *model.MeetingLog   `json:"meeting"`
	ParseFailure *model.ParseFailure `json:"parse_failure,omitempty"`

	// Events are the calendar events rendered into the prompt
	Events        []*model.CalendarEvent `json:"events"`
	Resolved      *model.ResolvedEvent   `json:"resolved"`
	CalendarError string                 `json:"calendar_error,omitempty"`

	Documents []*model.RetrievedDocument `json:"documents"`
	Prompt    string                     `json:"prompt"`
	Response  string                     `json:"response"`
}

// Degraded reports whether the run continued past a stage that failed
func (r *Result) Degraded() bool {
	return r.ParseFailure != nil || r.CalendarError != ""
}

// Run parses log, gathers calendar context, retrieves similar documents,
// assembles the prompt and generates the follow-up once. opts are applied to
// the final generation after the configured ones.
func (u *UseCase) Run(ctx context.Context, log string, opts ...adapter.GenerateOption) (*Result, error) {
	logger := logging.From(ctx)
	result := &Result{}

	parsed, err := u.ParseMeetingLog(ctx, log)
	if err != nil {
		return result, err
	}
	result.Meeting = parsed.MeetingOrEmpty()
	if parsed.Failed() {
		result.ParseFailure = parsed.Failure
		if u.strictParse {
			return result, goerr.Wrap(ErrMeetingParse, parsed.Failure.Error,
				goerr.V("raw_response", parsed.Failure.RawResponse))
		}
		logger.Warn("continuing with empty meeting record", "error", parsed.Failure.Error)
	}

	u.gatherCalendar(ctx, result)

	docs, err := u.retrieve(ctx, result.Meeting.Summary)
	if err != nil {
		return result, err
	}
	result.Documents = docs

	prompt, err := BuildPrompt(result.Meeting, result.Events, result.Documents, u.userName)
	if err != nil {
		return result, err
	}
	result.Prompt = prompt

	genOpts := append(append([]adapter.GenerateOption{}, u.genOpts...), opts...)
	response, err := u.llm.Generate(ctx, prompt, genOpts...)
	if err != nil {
		return result, goerr.Wrap(err, "failed to generate follow-up")
	}
	result.Response = response

	logger.Debug("follow-up generated",
		"source", result.Resolved.Source,
		"events", len(result.Events),
		"documents", len(result.Documents),
		"degraded", result.Degraded())

	return result, nil
}

func (u *UseCase) gatherCalendar(ctx context.Context, result *Result) {
	var candidates []*model.CalendarEvent
	if u.calendar != nil {
		events, err := u.calendar.ListUpcomingEvents(ctx, u.maxEvents)
		if err != nil {
			logging.From(ctx).Warn("calendar lookup failed", "error", err)
			result.CalendarError = err.Error()
		} else {
			candidates = events
		}
	}

	result.Resolved = ResolveEvent(result.Meeting, candidates, u.location)

	switch u.mode {
	case ModeResolve:
		if result.Resolved.Found {
			result.Events = []*model.CalendarEvent{result.Resolved.Event}
		}
	default:
		result.Events = candidates
	}
}

func (u *UseCase) retrieve(ctx context.Context, summary string) ([]*model.RetrievedDocument, error) {
	if u.retriever == nil || strings.TrimSpace(summary) == "" || u.topK <= 0 {
		return nil, nil
	}

	docs, err := u.retriever.Query(ctx, summary, u.topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to retrieve documents", goerr.V("top_k", u.topK))
	}
	return docs, nil
}
