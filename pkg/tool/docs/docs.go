package docs

import (
	"context"
	"strings"

	"github.com/inflect-gtm/inflect/pkg/adapter"
	"github.com/inflect-gtm/inflect/pkg/tool"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	gd "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

const documentURLPrefix = "https://docs.google.com/document/d/"

type Docs struct {
	enabled    bool
	clientOpts []option.ClientOption

	svc     *gd.Service
	limiter *adapter.RateLimiter
}

type Option func(*Docs)

// WithClientOptions adds Google API client options, used to point the tool at a test server
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(d *Docs) {
		d.clientOpts = append(d.clientOpts, opts...)
	}
}

// New creates a new Google Docs tool
func New(opts ...Option) *Docs {
	d := &Docs{
		limiter: adapter.NewRateLimiter(adapter.GoogleDocs),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (x *Docs) Kind() tool.Kind { return tool.KindDocs }

// Flags returns CLI flags for this tool
func (x *Docs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "docs",
			Sources:     cli.EnvVars("INFLECT_DOCS"),
			Usage:       "Enable publishing documents to Google Docs",
			Destination: &x.enabled,
		},
	}
}

// Init initializes the tool
func (x *Docs) Init(ctx context.Context, client *tool.Client) (bool, error) {
	if !x.enabled {
		return false, nil
	}

	opts := x.clientOpts
	if client != nil && client.GoogleToken != nil {
		opts = append([]option.ClientOption{option.WithTokenSource(client.GoogleToken)}, opts...)
	} else if len(opts) == 0 {
		return false, goerr.New("google credentials are required for docs")
	}

	svc, err := gd.NewService(ctx, opts...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to create docs service")
	}
	x.svc = svc
	return true, nil
}

// Enable turns the tool on without CLI flags
func (x *Docs) Enable() *Docs {
	x.enabled = true
	return x
}

// Create makes a new document and inserts body at its start
func (x *Docs) Create(ctx context.Context, title, body string) (*tool.DocumentRef, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}
	doc, err := x.svc.Documents.Create(&gd.Document{Title: title}).Context(ctx).Do()
	x.limiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create document", goerr.V("title", title))
	}

	ref := &tool.DocumentRef{ID: doc.DocumentId, URL: documentURLPrefix + doc.DocumentId + "/edit"}
	if body == "" {
		return ref, nil
	}

	if err := x.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait failed")
	}
	_, err = x.svc.Documents.BatchUpdate(doc.DocumentId, &gd.BatchUpdateDocumentRequest{
		Requests: []*gd.Request{
			{
				InsertText: &gd.InsertTextRequest{
					Location: &gd.Location{Index: 1},
					Text:     body,
				},
			},
		},
	}).Context(ctx).Do()
	x.limiter.Observe(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to write document body", goerr.V("document_id", doc.DocumentId))
	}

	return ref, nil
}

// Read returns the plain text of a document
func (x *Docs) Read(ctx context.Context, id string) (string, error) {
	if err := x.limiter.Wait(ctx); err != nil {
		return "", goerr.Wrap(err, "rate limiter wait failed")
	}
	doc, err := x.svc.Documents.Get(id).Context(ctx).Do()
	x.limiter.Observe(err)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get document", goerr.V("document_id", id))
	}

	return PlainText(doc), nil
}

// PlainText concatenates the text runs of every paragraph in doc
func PlainText(doc *gd.Document) string {
	if doc == nil || doc.Body == nil {
		return ""
	}

	var b strings.Builder
	for _, el := range doc.Body.Content {
		if el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe.TextRun != nil {
				b.WriteString(pe.TextRun.Content)
			}
		}
	}
	return b.String()
}
