package gmail

import (
	"context"
	"encoding/base64"
	"mime"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type Gmail struct {
	enabled    bool
	from       string
	clientOpts []option.ClientOption

	svc     *gm.Service
	limiter *adapter.RateLimiter
}

type Option func(*Gmail)

// WithClientOptions adds Google API client options, used to point the tool at a test server
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(g *Gmail) {
		g.clientOpts = append(g.clientOpts, opts...)
	}
}

// New creates a new Gmail tool
func New(opts ...Option) *Gmail {
	g := &Gmail{
		limiter: adapter.NewRateLimiter(adapter.GoogleGmail),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (x *Gmail) Kind() tool.Kind { return tool.KindGmail }

// Flags returns CLI flags for this tool
func (x *Gmail) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "gmail",
			Sources:     cli.EnvVars("INFLECT_GMAIL"),
			Usage:       "Enable sending email through Gmail",
			Destination: &x.enabled,
		},
		&cli.StringFlag{
			Name:        "gmail-from",
			Sources:     cli.EnvVars("INFLECT_GMAIL_FROM"),
			Usage:       "From header of sent email (default: authenticated user)",
			Destination: &x.from,
		},
	}
}

// Init initializes the tool
func (x *Gmail) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if !x.enabled {
		return false, nil
	}

	opts := x.clientOpts
	if client != nil && client.GoogleToken != nil {
		opts = append([]option.ClientOption{option.WithTokenSource(client.GoogleToken)}, opts...)
	} else if len(opts) == 0 {
		return false, goerr.New("google credentials are required for gmail")
	}

	svc, err := gm.NewService(ctx, opts...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create gmail service")
	}
	x.svc = svc
	return true, nil
}

// Enable turns the tool on without CLI flags
func (x *Gmail) Enable() *Gmail {
	x.enabled = true
	return x
}

// Send delivers a plain-text message as the authenticated user
func (x *Gmail) Send(ctx context.Context, to []string, subject, body string) (*tool.SendResult, error) {
	raw, err := BuildMessage(x.from, to, subject, body)
	if err != nil {
		return nil, err
	}

	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}

	msg, err := x.svc.Users.Messages.Send("me", &gm.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	x.limiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send email", goerr.V("to", to), goerr.V("subject", subject))
	}

	return &tool.SendResult{MessageID: msg.Id, ThreadID: msg.ThreadId}, nil
}

// BuildMessage renders an RFC 2822 plain-text message. It fails with
// tool.ErrMissingRecipient when to has no address.
func BuildMessage(from string, to []string, subject, body string) ([]byte, error) {
	var recipients []string
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil, goerr.Wrap(tool.ErrMissingRecipient, "cannot build email", goerr.V("subject", subject))
	}

	var b strings.Builder
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	b.WriteString("To: " + strings.Join(recipients, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return []byte(b.String()), nil
}
