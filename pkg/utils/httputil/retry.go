package httputil

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// RetryBaseDelay is the first backoff after a 429. Tests override it.
	RetryBaseDelay = time.Second
	// MaxRetryDelay caps a single backoff, including one asked for by Retry-After
	MaxRetryDelay = time.Minute
)

const defaultMaxRetries = 3

// DoWithRetry sends the request built by newRequest and retries on HTTP 429
// with exponential backoff, preferring the server's Retry-After when set.
// No single wait exceeds MaxRetryDelay.
// newRequest is called once per attempt so request bodies can be replayed.
// After maxRetries the last 429 response is returned to the caller.
func DoWithRetry(ctx context.Context, client *http.Client, newRequest func(ctx context.Context) (*http.Request, error), maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		req, err := newRequest(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create request")
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to send request", goerr.V("url", req.URL.String()))
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		backoff := RetryBaseDelay << attempt
		if v := resp.Header.Get("Retry-After"); v != "" {
			if sec, perr := strconv.Atoi(v); perr == nil && sec >= 0 {
				backoff = time.Duration(sec) * time.Second
			}
		}
		if backoff > MaxRetryDelay || backoff < 0 {
			backoff = MaxRetryDelay
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		logging.From(ctx).Debug("rate limited, retrying",
			"url", req.URL.String(),
			"backoff", backoff.String(),
			"attempt", attempt+1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// RetryClient is an HTTP doer that retries 429 responses with DoWithRetry.
// Requests whose body cannot be replayed are sent once.
type RetryClient struct {
	client     *http.Client
	maxRetries int
}

func NewRetryClient(client *http.Client, maxRetries int) *RetryClient {
	return &RetryClient{client: client, maxRetries: maxRetries}
}

func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return c.client.Do(req)
	}

	newRequest := func(ctx context.Context) (*http.Request, error) {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		return r, nil
	}
	return DoWithRetry(req.Context(), c.client, newRequest, c.maxRetries)
}
