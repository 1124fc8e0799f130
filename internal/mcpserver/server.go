// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes vault export tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vaultexport/internal/apperr"
	"github.com/starford/vaultexport/internal/exporter"
	"github.com/starford/vaultexport/internal/index"
	"github.com/starford/vaultexport/internal/models"
)

const contractURI = "vaultexport://frontmatter-contract"

// Server wraps the MCP server with export tools.
type Server struct {
	mcp *server.MCPServer
	exp *exporter.Exporter
	idx index.NoteIndex
}

// New creates a new MCP server with all export tools registered.
func New(exp *exporter.Exporter, idx index.NoteIndex) *Server {
	s := &Server{exp: exp, idx: idx}

	s.mcp = server.NewMCPServer(
		"vaultexport",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("export_vault",
		mcp.WithDescription("Export every note in the vault and return a summary with per-note errors."),
	), s.exportVault)

	s.mcp.AddTool(mcp.NewTool("export_note",
		mcp.WithDescription("Export a single note. Notes embedding it are not refreshed."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note (e.g. folder/note.md)")),
	), s.exportNote)

	s.mcp.AddTool(mcp.NewTool("preview_note",
		mcp.WithDescription("Run the export pipeline on one note and return the output without writing it. "+
			"Read the frontmatter contract first via get_frontmatter_contract or the "+
			contractURI+" resource to understand how keys are rewritten."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note (e.g. folder/note.md)")),
	), s.previewNote)

	s.mcp.AddTool(mcp.NewTool("list_exports",
		mcp.WithDescription("List the export manifest: one entry per source note with its destination and outcome."),
		mcp.WithString("status",
			mcp.Description("Optional outcome filter"),
			mcp.Enum(string(models.StatusExported), string(models.StatusSkipped), string(models.StatusFailed)),
		),
	), s.listExports)

	s.mcp.AddTool(mcp.NewTool("get_frontmatter_contract",
		mcp.WithDescription("Returns the frontmatter keys the exporter reads, rewrites and consumes."),
	), s.getFrontmatterContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Frontmatter Contract",
			mcp.WithResourceDescription("Frontmatter keys with special meaning during export."),
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

type reportResult struct {
	Exported int      `json:"exported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func (s *Server) exportVault(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.exp.ExportAll(ctx)
	if err != nil && report.Failed == 0 {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res := reportResult{Exported: report.Exported, Skipped: report.Skipped, Failed: report.Failed}
	for _, e := range report.Errors {
		res.Errors = append(res.Errors, e.Error())
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := s.exp.ExportNote(ctx, filepath.FromSlash(path))
	if err != nil {
		return mcp.NewToolResultError(noteError(path, err)), nil
	}
	if o.Status == models.StatusSkipped {
		return mcp.NewToolResultText(fmt.Sprintf("skipped: %s", path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("exported: %s -> %s", path, filepath.ToSlash(o.Destination))), nil
}

func (s *Server) previewNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	o, err := s.exp.Preview(ctx, filepath.FromSlash(path))
	if err != nil {
		return mcp.NewToolResultError(noteError(path, err)), nil
	}
	if o.Status == models.StatusSkipped {
		return mcp.NewToolResultText(fmt.Sprintf("skipped: %s would not be exported", path)), nil
	}
	return mcp.NewToolResultText(string(o.Content)), nil
}

func (s *Server) listExports(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	if err := validation.Validate(status, validation.In(
		string(models.StatusExported), string(models.StatusSkipped), string(models.StatusFailed),
	)); err != nil {
		return mcp.NewToolResultError("status: " + err.Error()), nil
	}

	records, err := s.idx.ListExports(models.ExportStatus(status))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no exports recorded"), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getFrontmatterContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrontmatterContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     FrontmatterContract,
		},
	}, nil
}

func noteError(path string, err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Sprintf("not found: %s", path)
	}
	return err.Error()
}
