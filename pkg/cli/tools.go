package cli

import (
	"context"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/tool/calendar"
	"github.com/inflect-gtm/inflect/pkg/tool/docs"
	"github.com/inflect-gtm/inflect/pkg/tool/gmail"
	"github.com/inflect-gtm/inflect/pkg/tool/sheets"
	"github.com/inflect-gtm/inflect/pkg/tool/slack"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	gcal "google.golang.org/api/calendar/v3"
	gdocs "google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	gm "google.golang.org/api/gmail/v1"
	gs "google.golang.org/api/sheets/v4"
)

var googleScopes = []string{
	gcal.CalendarEventsScope,
	gm.GmailSendScope,
	gs.SpreadsheetsScope,
	drive.DriveMetadataReadonlyScope,
	gdocs.DocumentsScope,
}

// collaborators is the closed set of tools a command can enable with flags
type collaborators struct {
	calendar *calendar.Calendar
	gmail    *gmail.Gmail
	sheets   *sheets.Sheets
	docs     *docs.Docs
	slack    *slack.Slack
}

func newCollaborators() *collaborators {
	return &collaborators{
		calendar: calendar.New(),
		gmail:    gmail.New(),
		sheets:   sheets.New(),
		docs:     docs.New(),
		slack:    slack.New(),
	}
}

func (x *collaborators) list() []tool.Collaborator {
	return []tool.Collaborator{x.calendar, x.gmail, x.sheets, x.docs, x.slack}
}

func (x *collaborators) flags() []cli.Flag {
	return tool.Flags(x.list()...)
}

// build initializes every collaborator enabled by flags
func (x *collaborators) build(ctx context.Context, cfg *config) (*tool.Set, error) {
	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}
	calendar.WithLocation(loc)(x.calendar)

	client := &tool.Client{}
	ts, err := adapter.NewGoogleTokenSource(ctx, cfg.googleCredentials, cfg.googleToken, googleScopes...)
	if err != nil {
		// Google collaborators report missing credentials from Init when enabled
		logging.From(ctx).Debug("google credentials unavailable", "error", err)
	} else {
		client.GoogleToken = ts
	}

	set := &tool.Set{}
	if err := tool.Enable[tool.Calendar](ctx, client, x.calendar, x.calendar, &set.Calendar); err != nil {
		return nil, err
	}
	if err := tool.Enable[tool.Mailer](ctx, client, x.gmail, x.gmail, &set.Mailer); err != nil {
		return nil, err
	}
	if err := tool.Enable[tool.Sheets](ctx, client, x.sheets, x.sheets, &set.Sheets); err != nil {
		return nil, err
	}
	if err := tool.Enable[tool.Docs](ctx, client, x.docs, x.docs, &set.Docs); err != nil {
		return nil, err
	}
	if err := tool.Enable[tool.Notifier](ctx, client, x.slack, x.slack, &set.Notifier); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("collaborators enabled", "kinds", set.Enabled())
	return set, nil
}
