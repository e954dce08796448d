package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/inflect-gtm/inflect/pkg/usecase/followup"
	"github.com/inflect-gtm/inflect/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "inflect"
	serverVersion = "0.1.0"

	defaultTopK = 3
)

// Transport is how the server talks to its MCP client
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

var ErrUnsupportedTransport = goerr.New("unsupported transport")

// Server exposes retrieval and the follow-up pipeline as MCP tools
type Server struct {
	followup  *followup.UseCase
	retriever followup.Retriever
	server    *mcp.Server
}

type searchParams struct {
	Query string `json:"query" jsonschema:"Text to search similar documents for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of documents to return, default 3"`
}

type logParams struct {
	Log string `json:"log" jsonschema:"Free-text meeting notes"`
}

// NewServer registers the tools. A nil retriever disables search_documents.
func NewServer(uc *followup.UseCase, retriever followup.Retriever) *Server {
	s := &Server{
		followup:  uc,
		retriever: retriever,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}

	if retriever != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "search_documents",
			Description: "Find stored documents similar to a query text",
		}, s.searchDocuments)
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "parse_meeting_log",
		Description: "Extract subject, participants, summary, action items and times from meeting notes",
	}, s.parseMeetingLog)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "draft_followup",
		Description: "Draft a follow-up email for meeting notes using calendar context and similar documents",
	}, s.draftFollowup)

	return s
}

func (s *Server) searchDocuments(ctx context.Context, req *mcp.CallToolRequest, params *searchParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Query) == "" {
		return errorResult("query is required"), nil, nil
	}
	topK := params.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	docs, err := s.retriever.Query(ctx, params.Query, topK)
	if err != nil {
		return s.fail(ctx, "search_documents", err), nil, nil
	}
	return jsonResult(docs)
}

func (s *Server) parseMeetingLog(ctx context.Context, req *mcp.CallToolRequest, params *logParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Log) == "" {
		return errorResult("log is required"), nil, nil
	}

	parsed, err := s.followup.ParseMeetingLog(ctx, params.Log)
	if err != nil {
		return s.fail(ctx, "parse_meeting_log", err), nil, nil
	}
	if parsed.Failed() {
		return jsonResult(parsed.Failure)
	}
	return jsonResult(parsed.Meeting)
}

func (s *Server) draftFollowup(ctx context.Context, req *mcp.CallToolRequest, params *logParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Log) == "" {
		return errorResult("log is required"), nil, nil
	}

	result, err := s.followup.Run(ctx, params.Log)
	if err != nil {
		return s.fail(ctx, "draft_followup", err), nil, nil
	}
	return jsonResult(result)
}

func (s *Server) fail(ctx context.Context, name string, err error) *mcp.CallToolResult {
	logging.From(ctx).Error("MCP tool failed", "tool", name, "error", err)
	return errorResult(err.Error())
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

// Handler serves the tools over streamable HTTP
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// Run serves until ctx is cancelled or the client disconnects. addr is used by the HTTP transport only.
func (s *Server) Run(ctx context.Context, transport Transport, addr string) error {
	logger := logging.From(ctx)

	switch transport {
	case TransportStdio, "":
		logger.Info("MCP server listening on stdio")
		if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return goerr.Wrap(err, "MCP stdio server failed")
		}
		return nil

	case TransportHTTP:
		srv := &http.Server{
			Addr:              addr,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("failed to shut down MCP server", "error", err)
			}
		}()

		logger.Info("MCP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return goerr.Wrap(err, "MCP HTTP server failed", goerr.V("addr", addr))
		}
		return nil

	default:
		return goerr.Wrap(ErrUnsupportedTransport, "use stdio or http",
			goerr.V("transport", transport))
	}
}
