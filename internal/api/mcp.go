package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/data4good/owl/internal/pipeline"
	"github.com/data4good/owl/internal/similarity"
)

// MCPRetriever abstracts document retrieval for the MCP layer.
type MCPRetriever interface {
	Fetch(ctx context.Context, query string, k int) ([]similarity.Document, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Pipeline  Asker
	Retriever MCPRetriever
}

// NewMCPServer creates an MCP server exposing the Q&A pipeline and raw
// report retrieval as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"owl",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Owl — Q&A over ReliefWeb humanitarian reports with source citations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_reports",
			mcp.WithDescription("Answer a question using ReliefWeb humanitarian reports, citing the source documents."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Number of similar documents to retrieve (1-10, default 5)")),
			mcp.WithString("model", mcp.Description("Generation model tier (default gemini-2.5-flash-lite)")),
		),
		mcpAskReports(deps),
	)

	s.AddTool(
		mcp.NewTool("search_reports",
			mcp.WithDescription("Retrieve the most similar report excerpts for a query, without generating an answer."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("k", mcp.Description("Number of documents to retrieve (1-10, default 5)")),
		),
		mcpSearchReports(deps),
	)

	return s
}

func mcpAskReports(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		out := deps.Pipeline.Ask(ctx, pipeline.Request{
			Query:       question,
			K:           req.GetInt("k", 0),
			Model:       req.GetString("model", ""),
			Temperature: -1,
		})

		if out.Failed() {
			return mcpError(fmt.Sprintf("%s (%s)", out.Message, out.ErrorDetail)), nil
		}
		if out.State != pipeline.StateAnswerReady {
			return mcpText(out.Message), nil
		}

		var sb strings.Builder
		sb.WriteString(out.Answer)
		if len(out.Documents) > 0 {
			sb.WriteString("\n\nSources:\n")
			for i, d := range out.Documents {
				fmt.Fprintf(&sb, "%d. %s (%s, page %s) %s\n", i+1, d.Title, d.Source, d.PageLabel, d.URL)
			}
		}
		return mcpText(sb.String()), nil
	}
}

func mcpSearchReports(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		k := req.GetInt("k", 5)
		if k < pipeline.MinK {
			k = pipeline.MinK
		}
		if k > pipeline.MaxK {
			k = pipeline.MaxK
		}

		docs, err := deps.Retriever.Fetch(ctx, strings.TrimSpace(query), k)
		if err != nil {
			return mcpError(fmt.Sprintf("retrieval failed: %v", err)), nil
		}
		if len(docs) == 0 {
			return mcpText("No similar documents found."), nil
		}

		var sb strings.Builder
		for i, d := range docs {
			fmt.Fprintf(&sb, "## Document %d: %s\nSource: %s (page %s)\nURL: %s\n%s\n\n",
				i+1, d.Title, d.Source, d.PageLabel, d.URL, d.ContextText())
		}
		return mcpText(sb.String()), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
