package followup

import (
	"context"
	"time"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/tool"
)

// DefaultUserName is the signature placeholder used when no sender name is configured
const DefaultUserName = "[Your Name]"

const (
	defaultTopK      = 3
	defaultMaxEvents = 3
)

// Mode selects how calendar context is gathered
type Mode string

const (
	// ModeUpcoming lists upcoming events and renders all of them into the prompt
	ModeUpcoming Mode = "upcoming"
	// ModeResolve renders only the event matched to the meeting log
	ModeResolve Mode = "resolve"
)

// Retriever finds documents similar to a query text
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]*model.RetrievedDocument, error)
}

// UseCase drafts follow-up emails from meeting logs
type UseCase struct {
	llm         adapter.LLM
	calendar    tool.Calendar
	retriever   Retriever
	userName    string
	topK        int
	maxEvents   int
	mode        Mode
	strictParse bool
	location    *time.Location
	genOpts     []adapter.GenerateOption
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithCalendar sets the calendar collaborator. Without it no calendar context is used.
func WithCalendar(c tool.Calendar) Option {
	return func(uc *UseCase) {
		uc.calendar = c
	}
}

// WithRetriever sets the document source for retrieval
func WithRetriever(r Retriever) Option {
	return func(uc *UseCase) {
		uc.retriever = r
	}
}

func WithUserName(name string) Option {
	return func(uc *UseCase) {
		uc.userName = name
	}
}

func WithTopK(k int) Option {
	return func(uc *UseCase) {
		uc.topK = k
	}
}

// WithMaxEvents bounds the number of upcoming events fetched from the calendar
func WithMaxEvents(n int) Option {
	return func(uc *UseCase) {
		uc.maxEvents = n
	}
}

func WithMode(m Mode) Option {
	return func(uc *UseCase) {
		uc.mode = m
	}
}

// WithStrictParse makes Run abort with ErrMeetingParse when the meeting log cannot be parsed
func WithStrictParse(strict bool) Option {
	return func(uc *UseCase) {
		uc.strictParse = strict
	}
}

// WithLocation sets the zone applied to timestamps that carry none
func WithLocation(loc *time.Location) Option {
	return func(uc *UseCase) {
		uc.location = loc
	}
}

// WithGenerateOptions adds options to the final generation call
func WithGenerateOptions(opts ...adapter.GenerateOption) Option {
	return func(uc *UseCase) {
		uc.genOpts = append(uc.genOpts, opts...)
	}
}

// New creates a new follow-up UseCase instance
func New(llm adapter.LLM, opts ...Option) *UseCase {
	uc := &UseCase{
		llm:       llm,
		userName:  DefaultUserName,
		topK:      defaultTopK,
		maxEvents: defaultMaxEvents,
		mode:      ModeUpcoming,
		location:  time.UTC,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
