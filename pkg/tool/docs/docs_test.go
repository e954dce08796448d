package docs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inflect-gtm/inflect/pkg/tool/docs"
	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"
)

func TestCreateAndRead(t *testing.T) {
	var inserted string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var req struct {
				Requests []struct {
					InsertText struct {
						Location struct {
							Index int `json:"index"`
						} `json:"location"`
						Text string `json:"text"`
					} `json:"insertText"`
				} `json:"requests"`
			}
			gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			gt.A(t, req.Requests).Length(1)
			gt.Equal(t, req.Requests[0].InsertText.Location.Index, 1)
			inserted = req.Requests[0].InsertText.Text
			_ = json.NewEncoder(w).Encode(map[string]any{"documentId": "doc1"})

		case r.Method == http.MethodPost:
			_ = json.NewEncoder(w).Encode(map[string]any{"documentId": "doc1", "title": "Onboarding"})

		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"documentId": "doc1",
				"body": map[string]any{
					"content": []map[string]any{
						{"sectionBreak": map[string]any{}},
						{"paragraph": map[string]any{"elements": []map[string]any{
							{"textRun": map[string]any{"content": "Welcome "}},
							{"textRun": map[string]any{"content": inserted}},
						}}},
					},
				},
			})
		}
	}))
	defer srv.Close()

	d := docs.New(docs.WithClientOptions(option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))).Enable()
	ok, err := d.Init(context.Background(), nil)
	gt.NoError(t, err)
	gt.True(t, ok)

	ref, err := d.Create(context.Background(), "Onboarding", "to the enterprise plan\n")
	gt.NoError(t, err)
	gt.Equal(t, ref.ID, "doc1")
	gt.Equal(t, ref.URL, "https://docs.google.com/document/d/doc1/edit")
	gt.Equal(t, inserted, "to the enterprise plan\n")

	text, err := d.Read(context.Background(), "doc1")
	gt.NoError(t, err)
	gt.Equal(t, text, "Welcome to the enterprise plan\n")
}

func TestPlainTextNil(t *testing.T) {
	gt.Equal(t, docs.PlainText(nil), "")
}
