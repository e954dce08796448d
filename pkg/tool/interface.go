package tool

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/urfave/cli/v3"
)

// Kind is the closed enumeration of external collaborators
type Kind string

const (
	KindCalendar Kind = "calendar"
	KindGmail    Kind = "gmail"
	KindSheets   Kind = "sheets"
	KindDocs     Kind = "docs"
	KindSlack    Kind = "slack"
)

// Kinds lists every collaborator kind
func Kinds() []Kind {
	return []Kind{KindCalendar, KindGmail, KindSheets, KindDocs, KindSlack}
}

// Collaborator is implemented by every concrete tool so that it can be
// configured from the command line and enabled at startup
type Collaborator interface {
	Kind() Kind

	// Flags returns CLI flags for this tool
	Flags() []cli.Flag

	// Init prepares the tool and reports whether it is usable
	Init(ctx context.Context, client *Client) (bool, error)
}

// Calendar reads and writes events on the user's calendar
type Calendar interface {
	ListUpcomingEvents(ctx context.Context, maxResults int) ([]*model.CalendarEvent, error)
	AddEvent(ctx context.Context, meeting *model.MeetingLog, attendeeEmails []string) (*model.CalendarEvent, error)
}

// SendResult identifies a delivered message
type SendResult struct {
	MessageID string
	ThreadID  string
}

// Mailer sends plain-text email
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) (*SendResult, error)
}

// Sheets reads and writes spreadsheet ranges. spreadsheet is an ID or a title.
type Sheets interface {
	ReadRange(ctx context.Context, spreadsheet, rng string) ([][]string, error)
	WriteRange(ctx context.Context, spreadsheet, rng string, rows [][]string) error
}

// DocumentRef points at a created document
type DocumentRef struct {
	ID  string
	URL string
}

// Docs creates and reads text documents
type Docs interface {
	Create(ctx context.Context, title, body string) (*DocumentRef, error)
	Read(ctx context.Context, id string) (string, error)
}

// Notifier posts a short message to a team channel
type Notifier interface {
	Post(ctx context.Context, text string) error
}
