package httputil_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inflect-gtm/inflect/pkg/utils/httputil"
	"github.com/m-mizutani/gt"
)

func TestDoWithRetry(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		gt.Equal(t, string(body), "payload")

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	newReq := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, srv.URL, strings.NewReader("payload"))
	}

	resp, err := httputil.DoWithRetry(context.Background(), srv.Client(), newReq, 5)
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.Equal(t, calls.Load(), int32(3))

	t.Run("gives up after max retries", func(t *testing.T) {
		calls.Store(-100)
		resp, err := httputil.DoWithRetry(context.Background(), srv.Client(), newReq, 2)
		gt.NoError(t, err)
		defer resp.Body.Close()
		gt.Equal(t, resp.StatusCode, http.StatusTooManyRequests)
		gt.Equal(t, calls.Load(), int32(-97))
	})

	t.Run("context cancel stops backoff", func(t *testing.T) {
		calls.Store(-100)
		httputil.RetryBaseDelay = time.Hour
		defer func() { httputil.RetryBaseDelay = time.Millisecond }()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := httputil.DoWithRetry(ctx, srv.Client(), newReq, 5)
		gt.Error(t, err)
	})
}

func TestDoWithRetryCapsRetryAfter(t *testing.T) {
	httputil.MaxRetryDelay = 10 * time.Millisecond
	defer func() { httputil.MaxRetryDelay = time.Minute }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "86400")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	newReq := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, srv.Client(), newReq, 3)
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.Equal(t, calls.Load(), int32(2))
	gt.True(t, time.Since(start) < time.Second)
}

func TestRetryClientReplaysBody(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond

	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		gt.NoError(t, err)
		bodies = append(bodies, string(body))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("channel=C123"))
	gt.NoError(t, err)

	resp, err := httputil.NewRetryClient(srv.Client(), 2).Do(req)
	gt.NoError(t, err)
	defer resp.Body.Close()
	gt.Equal(t, resp.StatusCode, http.StatusOK)
	gt.Equal(t, bodies, []string{"channel=C123", "channel=C123"})
}
