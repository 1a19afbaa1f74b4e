// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes maelstrom tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/maelstrom/internal/citation"
	"github.com/starford/maelstrom/internal/insight"
	"github.com/starford/maelstrom/internal/noteservice"
)

const contractURI = "maelstrom://capture-contract"

// Server wraps the MCP server with maelstrom tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	userID string
}

// New creates a new MCP server with all tools registered. Every tool acts
// as userID.
func New(svc *noteservice.Service, userID string) *Server {
	s := &Server{svc: svc, userID: userID}

	s.mcp = server.NewMCPServer(
		"Maelstrom",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("capture_note",
		mcp.WithDescription("Capture a short note (1-280 characters). "+
			"Read the capture contract via the "+contractURI+" resource first."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	), s.captureNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the newest notes."),
		mcp.WithNumber("limit", mcp.Description("Max notes to return (default 20)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("generate_insight",
		mcp.WithDescription("Generate an undercurrent (summary, questions, colours) from recent notes."),
		mcp.WithString("timeframe", mcp.Description("How far back to look (default all)"),
			mcp.Enum(insight.TimeframeNames()...)),
	), s.generateInsight)

	s.mcp.AddTool(mcp.NewTool("read_insight",
		mcp.WithDescription("Read an undercurrent with renumbered citation markers and the note ids behind them."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Undercurrent id")),
	), s.readInsight)

	s.mcp.AddTool(mcp.NewTool("get_cited_notes",
		mcp.WithDescription("Return the notes behind a displayed citation marker of an undercurrent."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Undercurrent id")),
		mcp.WithNumber("citation", mcp.Required(), mcp.Description("Displayed marker number, e.g. 2 for [2]")),
		mcp.WithNumber("question", mcp.Description("1-based question number; omit for the summary")),
	), s.getCitedNotes)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Capture Contract",
			mcp.WithResourceDescription("Note limits, undercurrent generation and citation markers."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) captureNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.svc.CreateNote(ctx, s.userID, content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("captured: %s", n.ID)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	notes, err := s.svc.ListNotes(ctx, s.userID, time.Time{}, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.SearchNotes(ctx, s.userID, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) generateInsight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tf := insight.ParseTimeframe(req.GetString("timeframe", ""))
	u, err := s.svc.Generate(ctx, s.userID, tf)
	if err != nil {
		if insight.IsInsufficientData(err) {
			return mcp.NewToolResultText(insight.InsufficientDataMessage), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatInsight(u.ID, citation.RenderInsight(*u, nil))), nil
}

func (s *Server) readInsight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.svc.RenderUndercurrent(ctx, s.userID, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(formatInsight(r.ID, r.Rendered)), nil
}

func (s *Server) getCitedNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := req.RequireInt("citation")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notes, err := s.svc.CitedNotes(ctx, s.userID, id, req.GetInt("question", 0), n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(notes), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     CaptureContract,
		},
	}, nil
}

// formatInsight lays out a rendered undercurrent as plain text with a legend
// of note ids under every text that cites any.
func formatInsight(id string, r citation.Insight) string {
	var b strings.Builder
	fmt.Fprintf(&b, "undercurrent %s\n\n", id)
	b.WriteString(citation.Text(r.Summary, citation.Bracketed))
	b.WriteString("\n")
	writeLegend(&b, r.Summary, "")
	if len(r.Questions) > 0 {
		b.WriteString("\nQuestions:\n")
	}
	for i, q := range r.Questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, citation.Text(q, citation.Bracketed))
		writeLegend(&b, q, "   ")
	}
	return b.String()
}

func writeLegend(b *strings.Builder, segments []citation.Segment, indent string) {
	for _, s := range segments {
		if s.Kind == citation.KindCitation {
			fmt.Fprintf(b, "%s  [%d] %s\n", indent, s.Index, strings.Join(s.NoteIDs, ", "))
		}
	}
}
