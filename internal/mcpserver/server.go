// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz coding analytics for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/autocode"
	"github.com/starford/ansuz/internal/coverage"
	"github.com/starford/ansuz/internal/export"
	"github.com/starford/ansuz/internal/service"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *service.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *service.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_codes",
		mcp.WithDescription("List the code book: every code with its id, text, color and parent."),
	), s.listCodes)

	s.mcp.AddTool(mcp.NewTool("list_transcripts",
		mcp.WithDescription("List transcripts with their id, title, case, length and number of codings."),
	), s.listTranscripts)

	patternOpts := []mcp.ToolOption{
		mcp.WithString("pattern", mcp.Required(), mcp.Description("Keyword or regular expression; matching is case-insensitive")),
		mcp.WithString("code_id", mcp.Required(), mcp.Description("Code applied to every match")),
		mcp.WithString("mode", mcp.Description("keyword (default) or regex"), mcp.Enum(string(autocode.Keyword), string(autocode.Regex))),
		mcp.WithArray("transcript_ids", mcp.Description("Restrict to these transcripts (default: all)"),
			mcp.Items(map[string]any{"type": "string"})),
	}

	s.mcp.AddTool(mcp.NewTool("autocode_preview", append([]mcp.ToolOption{
		mcp.WithDescription("Preview keyword or regex matches without coding them. Returns matches with surrounding context."),
	}, patternOpts...)...), s.autocodePreview)

	s.mcp.AddTool(mcp.NewTool("autocode_commit", append([]mcp.ToolOption{
		mcp.WithDescription("Code every keyword or regex match with the given code. Preview first."),
	}, patternOpts...)...), s.autocodeCommit)

	s.mcp.AddTool(mcp.NewTool("coverage_report",
		mcp.WithDescription("Coverage of the project: share of transcript text coded overall, per transcript, per code and per case."),
		mcp.WithBoolean("include_descendants", mcp.Description("Roll child codes into their parents")),
		mcp.WithString("format", mcp.Description("json (default) or text"), mcp.Enum("json", export.FormatText)),
	), s.coverageReport)

	s.mcp.AddTool(mcp.NewTool("reliability_report",
		mcp.WithDescription("Inter-coder agreement (Cohen's Kappa) between two codes over paragraph or sentence units. "+
			"Read the "+kappaBandsURI+" resource to interpret the value."),
		mcp.WithString("code_a", mcp.Required(), mcp.Description("First code id")),
		mcp.WithString("code_b", mcp.Required(), mcp.Description("Second code id")),
		mcp.WithString("mode", mcp.Description("paragraph or sentence (default: configured unit)"), mcp.Enum("paragraph", "sentence")),
		mcp.WithArray("transcript_ids", mcp.Description("Restrict to these transcripts (default: all)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("format", mcp.Description("json (default) or text"), mcp.Enum("json", export.FormatText)),
	), s.reliabilityReport)

	s.mcp.AddResource(
		mcp.NewResource(kappaBandsURI, "Kappa interpretation bands",
			mcp.WithResourceDescription("How Cohen's Kappa values map to agreement bands."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readKappaBands,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listCodes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Codes(ctx))
}

type transcriptItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	CaseID  string `json:"case_id,omitempty"`
	Length  int    `json:"length"`
	Codings int    `json:"codings"`
}

func (s *Server) listTranscripts(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.svc.Snapshot()
	counts := make(map[string]int)
	for _, c := range snap.Codings {
		counts[c.TranscriptID]++
	}
	items := make([]transcriptItem, 0, len(snap.Transcripts))
	for _, t := range snap.Transcripts {
		items = append(items, transcriptItem{ID: t.ID, Title: t.Title, CaseID: t.CaseID, Length: t.Len(), Codings: counts[t.ID]})
	}
	return jsonResult(items)
}

func autocodeRequest(req mcp.CallToolRequest) (autocode.Request, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return autocode.Request{}, err
	}
	codeID, err := req.RequireString("code_id")
	if err != nil {
		return autocode.Request{}, err
	}
	return autocode.Request{
		Pattern:       pattern,
		CodeID:        codeID,
		Mode:          autocode.Mode(req.GetString("mode", string(autocode.Keyword))),
		TranscriptIDs: req.GetStringSlice("transcript_ids", nil),
	}, nil
}

func (s *Server) autocodePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areq, err := autocodeRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.AutocodePreview(ctx, areq)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(p)
}

func (s *Server) autocodeCommit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	areq, err := autocodeRequest(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.AutocodeCommit(ctx, areq)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created %d codings", res.Created)), nil
}

func (s *Server) coverageReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rep, err := s.svc.Coverage(ctx, coverage.Options{IncludeDescendants: req.GetBool("include_descendants", false)})
	if err != nil {
		return errorResult(err), nil
	}
	if req.GetString("format", "json") == export.FormatText {
		var buf bytes.Buffer
		if err := export.CoverageText(&buf, rep); err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
	return jsonResult(rep)
}

func (s *Server) reliabilityReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	a, err := req.RequireString("code_a")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, err := req.RequireString("code_b")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rep, err := s.svc.Reliability(ctx, a, b, req.GetString("mode", ""), req.GetStringSlice("transcript_ids", nil))
	if err != nil {
		return errorResult(err), nil
	}
	if req.GetString("format", "json") == export.FormatText {
		names := make(map[string]string)
		for _, c := range s.svc.Codes(ctx) {
			names[c.ID] = c.Text
		}
		var buf bytes.Buffer
		if err := export.ReliabilityText(&buf, rep, names[a], names[b]); err != nil {
			return errorResult(err), nil
		}
		return mcp.NewToolResultText(buf.String()), nil
	}
	return jsonResult(rep)
}

func (s *Server) readKappaBands(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      kappaBandsURI,
			MIMEType: "text/markdown",
			Text:     KappaBands(),
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult prefixes the error with its kind so clients can tell bad input
// from missing references.
func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(apperr.KindOf(err) + ": " + err.Error())
}
