package calendar

import (
	"context"
	"time"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/utils/timeparse"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultEventDuration is used when a meeting has a start but no end time
const DefaultEventDuration = time.Hour

var ErrNoStartTime = goerr.New("meeting has no parseable start time")

type Calendar struct {
	enabled    bool
	calendarID string
	location   *time.Location
	clientOpts []option.ClientOption
	now        func() time.Time

	svc     *gcal.Service
	limiter *adapter.RateLimiter
}

type Option func(*Calendar)

// WithClientOptions adds Google API client options, used to point the tool at a test server
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Calendar) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

func WithLocation(loc *time.Location) Option {
	return func(c *Calendar) {
		c.location = loc
	}
}

func WithNow(now func() time.Time) Option {
	return func(c *Calendar) {
		c.now = now
	}
}

// New creates a new Google Calendar tool
func New(opts ...Option) *Calendar {
	c := &Calendar{
		calendarID: "primary",
		location:   time.UTC,
		now:        time.Now,
		limiter:    adapter.NewRateLimiter(adapter.GoogleCalendar),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (x *Calendar) Kind() tool.Kind { return tool.KindCalendar }

// Flags returns CLI flags for this tool
func (x *Calendar) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "calendar",
			Sources:     cli.EnvVars("INFLECT_CALENDAR"),
			Usage:       "Enable Google Calendar",
			Destination: &x.enabled,
		},
		&cli.StringFlag{
			Name:        "calendar-id",
			Sources:     cli.EnvVars("INFLECT_CALENDAR_ID"),
			Usage:       "Google Calendar ID",
			Value:       "primary",
			Destination: &x.calendarID,
		},
	}
}

// Init initializes the tool
func (x *Calendar) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if !x.enabled {
		return false, nil
	}

	opts := x.clientOpts
	if client != nil && client.GoogleToken != nil {
		opts = append([]option.ClientOption{option.WithTokenSource(client.GoogleToken)}, opts...)
	} else if len(opts) == 0 {
		return false, goerr.New("google credentials are required for calendar")
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create calendar service")
	}
	x.svc = svc
	return true, nil
}

// Enable turns the tool on without CLI flags
func (x *Calendar) Enable() *Calendar {
	x.enabled = true
	return x
}

// ListUpcomingEvents returns single events from now on, ordered by start time
func (x *Calendar) ListUpcomingEvents(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}

	resp, err := x.svc.Events.List(x.calendarID).
		TimeMin(x.now().Format(time.RFC3339)).
		MaxResults(int64(maxResults)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	x.limiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list calendar events", goerr.V("calendar_id", x.calendarID))
	}

	events := make([]*model.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toModel(item))
	}
	return events, nil
}

// AddEvent creates an event from a parsed meeting
func (x *Calendar) AddEvent(ctx context.Context, meeting *model.MeetingLog, attendeeEmails []string) (*model.CalendarEvent, error) {
	ev, err := fromMeeting(meeting, attendeeEmails, x.location)
	if err != nil {
		return nil, err
	}

	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}

	created, err := x.svc.Events.Insert(x.calendarID, ev).Context(ctx).Do()
	x.limiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert calendar event", goerr.V("summary", ev.Summary))
	}

	return toModel(created), nil
}

func toModel(ev *gcal.Event) *model.CalendarEvent {
	out := &model.CalendarEvent{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       eventTime(ev.Start),
		End:         eventTime(ev.End),
		HTMLLink:    ev.HtmlLink,
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, model.Attendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	return out
}

// eventTime prefers the date-time and falls back to the date of all-day events
func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func fromMeeting(meeting *model.MeetingLog, attendeeEmails []string, loc *time.Location) (*gcal.Event, error) {
	if meeting == nil {
		return nil, goerr.New("meeting is required")
	}

	start, ok := timeparse.Parse(meeting.StartTime, loc)
	if !ok {
		return nil, goerr.Wrap(ErrNoStartTime, "cannot create event", goerr.V("start_time", meeting.StartTime))
	}
	end, ok := timeparse.Parse(meeting.EndTime, loc)
	if !ok || !end.After(start) {
		end = start.Add(DefaultEventDuration)
	}

	ev := &gcal.Event{
		Summary:     meeting.Subject,
		Description: meeting.Summary,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	for _, email := range attendeeEmails {
		if email != "" {
			ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
		}
	}
	return ev, nil
}
