package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gs "google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

var (
	ErrSpreadsheetNotFound = goerr.New("spreadsheet not found")

	spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{25,}$`)
)

type Sheets struct {
	enabled    bool
	clientOpts []option.ClientOption

	sheets        *gs.Service
	drive         *drive.Service
	sheetsLimiter *adapter.RateLimiter
	driveLimiter  *adapter.RateLimiter
}

type Option func(*Sheets)

// WithClientOptions adds Google API client options, used to point the tool at a test server
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(s *Sheets) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// New creates a new Google Sheets tool
func New(opts ...Option) *Sheets {
	s := &Sheets{
		sheetsLimiter: adapter.NewRateLimiter(adapter.GoogleSheets),
		driveLimiter:  adapter.NewRateLimiter(adapter.GoogleDrive),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (x *Sheets) Kind() tool.Kind { return tool.KindSheets }

// Flags returns CLI flags for this tool
func (x *Sheets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "sheets",
			Sources:     cli.EnvVars("INFLECT_SHEETS"),
			Usage:       "Enable Google Sheets",
			Destination: &x.enabled,
		},
	}
}

// Init initializes the tool
func (x *Sheets) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if !x.enabled {
		return false, nil
	}

	opts := x.clientOpts
	if client != nil && client.GoogleToken != nil {
		opts = append([]option.ClientOption{option.WithTokenSource(client.GoogleToken)}, opts...)
	} else if len(opts) == 0 {
		return false, goerr.New("google credentials are required for sheets")
	}

	sheetsSvc, err := gs.NewService(ctx, opts...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create sheets service")
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create drive service")
	}

	x.sheets = sheetsSvc
	x.drive = driveSvc
	return true, nil
}

// Enable turns the tool on without CLI flags
func (x *Sheets) Enable() *Sheets {
	x.enabled = true
	return x
}

// ReadRange returns cell values as strings. spreadsheet is an ID or a title.
func (x *Sheets) ReadRange(ctx context.Context, spreadsheet, rng string) ([][]string, error) {
	id, err := x.resolveID(ctx, spreadsheet)
	if err != nil {
		return nil, err
	}

	if err := x.sheetsLimiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}
	resp, err := x.sheets.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	x.sheetsLimiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read range", goerr.V("spreadsheet", id), goerr.V("range", rng))
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// WriteRange overwrites the range with rows as entered by a user
func (x *Sheets) WriteRange(ctx context.Context, spreadsheet, rng string, rows [][]string) error {
	id, err := x.resolveID(ctx, spreadsheet)
	if err != nil {
		return err
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = make([]any, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}

	if err := x.sheetsLimiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "rate limiter wait failed")
	}
	_, err = x.sheets.Spreadsheets.Values.Update(id, rng, &gs.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	x.sheetsLimiter.Observe(err)
	if err != nil {
		return goerr.Wrap(err, "failed to write range", goerr.V("spreadsheet", id), goerr.V("range", rng))
	}
	return nil
}

// resolveID returns spreadsheet unchanged when it looks like an ID, otherwise
// the most recently modified spreadsheet with that title
func (x *Sheets) resolveID(ctx context.Context, spreadsheet string) (string, error) {
	if spreadsheetIDPattern.MatchString(spreadsheet) {
		return spreadsheet, nil
	}

	if err := x.driveLimiter.Wait(ctx); err != nil {
		return "", goerr.Wrap(err, "rate limiter wait failed")
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(spreadsheet, "'", `\'`), spreadsheetMimeType)
	resp, err := x.drive.Files.List().
		Q(q).
		OrderBy("modifiedTime desc").
		PageSize(1).
		Fields("files(id, name)").
		Context(ctx).
		Do()
	x.driveLimiter.Observe(err)
	if err != nil {
		return "", goerr.Wrap(err, "failed to search spreadsheet", goerr.V("title", spreadsheet))
	}
	if len(resp.Files) == 0 {
		return "", goerr.Wrap(ErrSpreadsheetNotFound, "no spreadsheet with that title", goerr.V("title", spreadsheet))
	}
	return resp.Files[0].Id, nil
}

// ParseRows turns the first row into headers and every following row into a
// header-keyed record. Missing trailing cells become empty strings and
// columns with a blank header are dropped.
func ParseRows(rows [][]string) []map[string]string {
	if len(rows) == 0 {
		return nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(map[string]string, len(headers))
		empty := true
		for i, h := range headers {
			if h == "" {
				continue
			}
			var v string
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			if v != "" {
				empty = false
			}
			record[h] = v
		}
		if !empty {
			records = append(records, record)
		}
	}
	return records
}
