package sheets_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inflect-gtm/inflect/pkg/tool/sheets"
	"github.com/m-mizutani/gt"
	"google.golang.org/api/option"
)

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"Name", " Industry ", "", "Seats"},
		{"Acme", "Retail", "ignored", "120"},
		{"Globex", "Energy"},
		{"", "", "", ""},
	}

	records := sheets.ParseRows(rows)
	gt.A(t, records).Length(2)
	gt.Equal(t, records[0], map[string]string{"Name": "Acme", "Industry": "Retail", "Seats": "120"})
	gt.Equal(t, records[1], map[string]string{"Name": "Globex", "Industry": "Energy", "Seats": ""})

	gt.A(t, sheets.ParseRows(nil)).Length(0)
	gt.A(t, sheets.ParseRows([][]string{{"Name"}})).Length(0)
}

const testSpreadsheetID = "1AbCdEfGhIjKlMnOpQrStUvWxYz0123456789"

func newTestSheets(t *testing.T, handler http.HandlerFunc) *sheets.Sheets {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s := sheets.New(sheets.WithClientOptions(option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))).Enable()
	ok, err := s.Init(context.Background(), nil)
	gt.NoError(t, err)
	gt.True(t, ok)
	return s
}

func TestReadRangeByID(t *testing.T) {
	s := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		gt.S(t, r.URL.Path).Contains("/spreadsheets/" + testSpreadsheetID + "/values/")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"range":  "Sheet1!A1:B2",
			"values": [][]any{{"Name", "Seats"}, {"Acme", 120}},
		})
	})

	rows, err := s.ReadRange(context.Background(), testSpreadsheetID, "Sheet1!A1:B2")
	gt.NoError(t, err)
	gt.Equal(t, rows, [][]string{{"Name", "Seats"}, {"Acme", "120"}})
}

func TestReadRangeByTitle(t *testing.T) {
	s := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/files"):
			q := r.URL.Query().Get("q")
			gt.S(t, q).Contains("name = 'Customer\\'s list'")
			gt.Equal(t, r.URL.Query().Get("orderBy"), "modifiedTime desc")
			_ = json.NewEncoder(w).Encode(map[string]any{"files": []map[string]any{{"id": "sheet-from-drive"}}})
		case strings.Contains(r.URL.Path, "/spreadsheets/sheet-from-drive/values/"):
			_ = json.NewEncoder(w).Encode(map[string]any{"values": [][]any{{"Name"}}})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	rows, err := s.ReadRange(context.Background(), "Customer's list", "A1:A1")
	gt.NoError(t, err)
	gt.Equal(t, rows, [][]string{{"Name"}})
}

func TestReadRangeTitleNotFound(t *testing.T) {
	s := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"files": []any{}})
	})

	_, err := s.ReadRange(context.Background(), "Missing", "A1:A1")
	gt.True(t, errors.Is(err, sheets.ErrSpreadsheetNotFound))
}

func TestWriteRange(t *testing.T) {
	s := newTestSheets(t, func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Method, http.MethodPut)
		gt.Equal(t, r.URL.Query().Get("valueInputOption"), "USER_ENTERED")
		var body struct {
			Values [][]string `json:"values"`
		}
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gt.Equal(t, body.Values, [][]string{{"Acme", "enterprise"}})
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedCells": 2})
	})

	gt.NoError(t, s.WriteRange(context.Background(), testSpreadsheetID, "Sheet1!A2:B2", [][]string{{"Acme", "enterprise"}}))
}
