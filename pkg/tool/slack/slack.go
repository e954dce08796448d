package slack

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/utils/httputil"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
	"github.com/urfave/cli/v3"
)

var ErrSlackAPI = goerr.New("slack API returned error")

type Slack struct {
	token   string
	channel string
	apiURL  string

	httpClient *http.Client
	client     *slack.Client
}

type Option func(*Slack)

// WithBaseURL replaces the Slack Web API endpoint
func WithBaseURL(url string) Option {
	return func(s *Slack) {
		s.apiURL = strings.TrimRight(url, "/") + "/"
	}
}

func WithToken(token, channel string) Option {
	return func(s *Slack) {
		s.token = token
		s.channel = channel
	}
}

// New creates a new Slack notifier tool
func New(opts ...Option) *Slack {
	s := &Slack{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (x *Slack) Kind() tool.Kind { return tool.KindSlack }

// Flags returns CLI flags for this tool
func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Sources:     cli.EnvVars("INFLECT_SLACK_TOKEN"),
			Usage:       "Slack bot token",
			Destination: &x.token,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Sources:     cli.EnvVars("INFLECT_SLACK_CHANNEL"),
			Usage:       "Slack channel ID for notifications",
			Destination: &x.channel,
		},
	}
}

// Init initializes the tool
func (x *Slack) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if x.token == "" {
		return false, nil
	}
	if x.channel == "" {
		return false, goerr.New("slack-channel is required when slack-token is set")
	}

	opts := []slack.Option{
		slack.OptionHTTPClient(httputil.NewRetryClient(x.httpClient, 0)),
	}
	if x.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(x.apiURL))
	}
	x.client = slack.New(x.token, opts...)
	return true, nil
}

// Post sends text to the configured channel. 429 responses are retried by the
// HTTP client before the Slack client sees them.
func (x *Slack) Post(ctx context.Context, text string) error {
	if x.client == nil {
		return goerr.New("slack notifier is not initialized")
	}

	if _, _, err := x.client.PostMessageContext(ctx, x.channel, slack.MsgOptionText(text, false)); err != nil {
		return x.postError(err)
	}
	return nil
}

func (x *Slack) postError(err error) error {
	var (
		apiErr    slack.SlackErrorResponse
		statusErr slack.StatusCodeError
		rateErr   *slack.RateLimitedError
	)
	switch {
	case errors.As(err, &apiErr):
		return goerr.Wrap(ErrSlackAPI, apiErr.Err, goerr.V("channel", x.channel))
	case errors.As(err, &rateErr):
		return goerr.Wrap(ErrSlackAPI, "rate limited",
			goerr.V("channel", x.channel),
			goerr.V("retry_after", rateErr.RetryAfter.String()))
	case errors.As(err, &statusErr):
		return goerr.Wrap(ErrSlackAPI, "unexpected status",
			goerr.V("channel", x.channel),
			goerr.V("status", statusErr.Code))
	default:
		return goerr.Wrap(err, "failed to post slack message", goerr.V("channel", x.channel))
	}
}
