package slack_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inflect-gtm/inflect/pkg/tool/slack"
	"github.com/inflect-gtm/inflect/pkg/utils/httputil"
	"github.com/m-mizutani/gt"
)

func TestPost(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gt.Equal(t, r.URL.Path, "/chat.postMessage")
		gt.NoError(t, r.ParseForm())
		gt.Equal(t, r.Form.Get("channel"), "C123")

		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("text") {
		case "fail":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.000100"})
		}
	}))
	defer srv.Close()

	s := slack.New(slack.WithBaseURL(srv.URL), slack.WithToken("xoxb-test", "C123"))
	ok, err := s.Init(context.Background(), nil)
	gt.NoError(t, err)
	gt.True(t, ok)

	gt.NoError(t, s.Post(context.Background(), "Follow-up sent to Acme"))
	gt.Equal(t, calls, 2)

	err = s.Post(context.Background(), "fail")
	gt.True(t, errors.Is(err, slack.ErrSlackAPI))

	err = s.Post(context.Background(), "boom")
	gt.True(t, errors.Is(err, slack.ErrSlackAPI))
}

func TestPostRateLimitExhausted(t *testing.T) {
	httputil.RetryBaseDelay = time.Millisecond

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := slack.New(slack.WithBaseURL(srv.URL), slack.WithToken("xoxb-test", "C123"))
	_, err := s.Init(context.Background(), nil)
	gt.NoError(t, err)

	err = s.Post(context.Background(), "hello")
	gt.True(t, errors.Is(err, slack.ErrSlackAPI))
}

func TestPostBeforeInit(t *testing.T) {
	gt.Error(t, slack.New().Post(context.Background(), "hello"))
}

func TestInit(t *testing.T) {
	ok, err := slack.New().Init(context.Background(), nil)
	gt.NoError(t, err)
	gt.False(t, ok)

	_, err = slack.New(slack.WithToken("xoxb-test", "")).Init(context.Background(), nil)
	gt.Error(t, err)
}
