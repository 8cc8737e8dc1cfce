// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes paperasse tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/paperasse/internal/docservice"
	"github.com/starford/paperasse/internal/models"
)

// Server wraps the MCP server with paperasse tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all paperasse tools registered.
func New(svc *docservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Paperasse",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Analyze raw document text: type, amount, period, anomalies and a "+
			"non-destructive action plan. Nothing is stored. Read classification_rules first."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Document text, typically OCR output")),
		mcp.WithString("tenant_id", mcp.Description("Tenant whose leases are matched against receipts")),
	), s.analyzeDocument)

	s.mcp.AddTool(mcp.NewTool("check_duplicates",
		mcp.WithDescription("Check whether a document is already stored, by raw content hash "+
			"and by normalized text hash."),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("content_hash", mcp.Description("SHA-256 of the raw bytes")),
		mcp.WithString("text_hash", mcp.Description("SHA-256 of the normalized text")),
	), s.checkDuplicates)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List documents linked to an entity, or to the global scope when no scope is given."),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("scope", mcp.Description("Linked type: property, lease, tenant, transaction, loan or global")),
		mcp.WithString("id", mcp.Description("Linked entity id, empty for global")),
		mcp.WithString("status", mcp.Description("Optional status filter")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 50)")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get a stored document with its links and classification."),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through extracted document text and filenames."),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("upload_document",
		mcp.WithDescription("Store a PDF or text document fetched from an http(s) URL or a base64 data URI. "+
			"Identical content already stored is returned with alreadyExists=true."),
		mcp.WithString("tenant_id", mcp.Required(), mcp.Description("Tenant id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional filename (.pdf or .txt)")),
		mcp.WithString("links", mcp.Description(`Optional JSON array such as [{"linkedType":"lease","linkedId":"l-1"}]`)),
	), s.uploadDocument)

	s.mcp.AddTool(mcp.NewTool("classification_rules",
		mcp.WithDescription("Returns the document type rules, thresholds and anomaly definitions."),
	), s.classificationRules)

	s.mcp.AddResource(
		mcp.NewResource(ClassificationRulesURI, "Classification Rules",
			mcp.WithResourceDescription("How documents are typed, flagged and associated."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readClassificationRules,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

type analysis struct {
	Extraction any `json:"extraction"`
	Plan       any `json:"plan"`
}

func (s *Server) analyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ext, plan, err := s.svc.Analyze(ctx, req.GetString("tenant_id", ""), text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(analysis{Extraction: ext, Plan: plan})
}

func (s *Server) checkDuplicates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := s.svc.CheckDuplicates(ctx, tenantID, models.DuplicateQuery{
		ContentHash: req.GetString("content_hash", ""),
		TextHash:    req.GetString("text_hash", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	docs, total, err := s.svc.List(ctx, tenantID, docservice.ListQuery{
		Ref: models.LinkRef{
			LinkedType: models.LinkedType(req.GetString("scope", "")),
			LinkedID:   req.GetString("id", ""),
		},
		Status: models.Status(req.GetString("status", "")),
		Limit:  req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"documents": docs, "total": total})
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Get(ctx, tenantID, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc)
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := req.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, tenantID, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) classificationRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ClassificationRules), nil
}

func (s *Server) readClassificationRules(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ClassificationRulesURI,
			MIMEType: "text/markdown",
			Text:     ClassificationRules,
		},
	}, nil
}
