package gmail_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/inflect-gtm/inflect/pkg/tool/gmail"
	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"
)

func TestBuildMessage(t *testing.T) {
	raw, err := gmail.BuildMessage("", []string{"sarah@x.com", " james@x.com "}, "Follow-up", "Hello")
	gt.NoError(t, err)
	gt.Equal(t, string(raw), "To: sarah@x.com, james@x.com\r\n"+
		"Subject: Follow-up\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"Hello")

	raw, err = gmail.BuildMessage("alex@y.com", []string{"sarah@x.com"}, "Café", "body")
	gt.NoError(t, err)
	gt.S(t, string(raw)).Contains("From: alex@y.com\r\n")
	gt.S(t, string(raw)).Contains("Subject: =?utf-8?q?Caf=C3=A9?=\r\n")
}

func TestBuildMessageMissingRecipient(t *testing.T) {
	for _, to := range [][]string{nil, {}, {"", "  "}} {
		_, err := gmail.BuildMessage("", to, "s", "b")
		gt.True(t, errors.Is(err, tool.ErrMissingRecipient))
	}
}

func TestSend(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gt.S(t, r.URL.Path).Contains("/users/me/messages/send")

		var msg struct {
			Raw string `json:"raw"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		decoded, err := base64.URLEncoding.DecodeString(msg.Raw)
		gt.NoError(t, err)
		gt.S(t, string(decoded)).Contains("To: sarah@x.com\r\n")

		_ = json.NewEncoder(w).Encode(map[string]any{"id": "m1", "threadId": "t1"})
	}))
	defer srv.Close()

	g := gmail.New(gmail.WithClientOptions(option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))).Enable()
	ok, err := g.Init(context.Background(), nil)
	gt.NoError(t, err)
	gt.True(t, ok)

	res, err := g.Send(context.Background(), []string{"sarah@x.com"}, "Follow-up", "Hello")
	gt.NoError(t, err)
	gt.Equal(t, res.MessageID, "m1")
	gt.Equal(t, res.ThreadID, "t1")

	_, err = g.Send(context.Background(), nil, "Follow-up", "Hello")
	gt.True(t, errors.Is(err, tool.ErrMissingRecipient))
	gt.Equal(t, calls, 1)
}
