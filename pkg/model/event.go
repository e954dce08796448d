package model

// Attendee is a calendar event participant
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// CalendarEvent is a read-only snapshot of an event from the calendar collaborator.
// Start and End hold RFC 3339 date-times, or dates for all-day events.
type CalendarEvent struct {
	ID          string     `json:"id,omitempty"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       string     `json:"start"`
	End         string     `json:"end"`
	Attendees   []Attendee `json:"attendees,omitempty"`
	HTMLLink    string     `json:"html_link,omitempty"`
}

type EventSource string

const (
	EventSourceCalendar EventSource = "calendar"
	EventSourceLogOnly  EventSource = "log_only"
)

// ResolvedEvent is the outcome of matching a meeting log against calendar events.
// When Found is false, every field is derived from the meeting log alone.
type ResolvedEvent struct {
	Found        bool        `json:"found"`
	Source       EventSource `json:"source"`
	Subject      string      `json:"subject"`
	StartTime    string      `json:"start_time"`
	EndTime      string      `json:"end_time"`
	Participants []Attendee  `json:"participants"`
	Emails       []string    `json:"emails"`
	Names        []string    `json:"names"`

	// Event is the matched calendar entry, nil for log-only resolutions
	Event *CalendarEvent `json:"event,omitempty"`
}
