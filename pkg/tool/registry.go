package tool

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

var (
	ErrNotConfigured    = goerr.New("collaborator is not configured")
	ErrMissingRecipient = goerr.New("no recipient email address provided")
)

// Set holds the collaborators resolved at startup. A nil field means the
// collaborator is disabled.
type Set struct {
	Calendar Calendar
	Mailer   Mailer
	Sheets   Sheets
	Docs     Docs
	Notifier Notifier
}

// Enabled lists the kinds that have an implementation
func (s *Set) Enabled() []Kind {
	var kinds []Kind
	if s == nil {
		return kinds
	}
	if s.Calendar != nil {
		kinds = append(kinds, KindCalendar)
	}
	if s.Mailer != nil {
		kinds = append(kinds, KindGmail)
	}
	if s.Sheets != nil {
		kinds = append(kinds, KindSheets)
	}
	if s.Docs != nil {
		kinds = append(kinds, KindDocs)
	}
	if s.Notifier != nil {
		kinds = append(kinds, KindSlack)
	}
	return kinds
}

func notConfigured(kind Kind) error {
	return goerr.Wrap(ErrNotConfigured, "enable the collaborator with its flags", goerr.V("kind", kind))
}

func (s *Set) RequireCalendar() (Calendar, error) {
	if s == nil || s.Calendar == nil {
		return nil, notConfigured(KindCalendar)
	}
	return s.Calendar, nil
}

func (s *Set) RequireMailer() (Mailer, error) {
	if s == nil || s.Mailer == nil {
		return nil, notConfigured(KindGmail)
	}
	return s.Mailer, nil
}

func (s *Set) RequireSheets() (Sheets, error) {
	if s == nil || s.Sheets == nil {
		return nil, notConfigured(KindSheets)
	}
	return s.Sheets, nil
}

// Enable runs c.Init and, when the collaborator reports itself usable,
// stores impl into dst. It keeps Set construction typed per kind.
func Enable[T any](ctx context.Context, client *Client, c Collaborator, impl T, dst *T) error {
	ok, err := c.Init(ctx, client)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize collaborator", goerr.V("kind", c.Kind()))
	}
	if ok {
		*dst = impl
	}
	return nil
}

// Flags returns all collaborator flags combined
func Flags(collaborators ...Collaborator) []cli.Flag {
	var flags []cli.Flag
	for _, c := range collaborators {
		flags = append(flags, c.Flags()...)
	}
	return flags
}
