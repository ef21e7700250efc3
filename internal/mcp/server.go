// Package mcp exposes morty's pickling pipeline as a Model Context
// Protocol tool, so an agentic coding assistant can invoke the
// transformation directly instead of shelling out to the CLI. It uses
// the mcp.NewServer + typed AddTool registration pattern, reduced to
// morty's single `pickle` tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pulp-platform/morty/internal/bundle"
	"github.com/pulp-platform/morty/internal/pipeline"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/version"
)

// Server wraps the MCP server instance registered with morty's one tool.
type Server struct {
	server *mcp.Server
}

// NewServer builds the MCP server and registers the `pickle` tool.
func NewServer() *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "morty-mcp-server",
			Version: version.Version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run starts the server over stdio and blocks until ctx is canceled or the
// transport closes.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "pickle",
		Description: "Pickle a SystemVerilog source set into one renamed, source-faithful file.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"files": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "SystemVerilog source file paths to pickle.",
				},
				"include_dirs": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Include directories for `include resolution.",
				},
				"defines": {
					Type:        "object",
					Description: "Preprocessor defines applied to every file.",
				},
				"prefix": {
					Type:        "string",
					Description: "Rename prefix applied to retained design units.",
				},
				"suffix": {
					Type:        "string",
					Description: "Rename suffix applied to retained design units.",
				},
				"top_module": {
					Type:        "string",
					Description: "Prune to the set of units reachable from this module.",
				},
				"strip_comments": {
					Type:        "boolean",
					Description: "Strip non-documentation comments.",
				},
			},
			Required: []string{"files"},
		},
	}, s.handlePickle)
}

// pickleParams is the decoded shape of the `pickle` tool's arguments.
type pickleParams struct {
	Files         []string          `json:"files"`
	IncludeDirs   []string          `json:"include_dirs"`
	Defines       map[string]string `json:"defines"`
	Prefix        string            `json:"prefix"`
	Suffix        string            `json:"suffix"`
	TopModule     string            `json:"top_module"`
	StripComments bool              `json:"strip_comments"`
}

func (s *Server) handlePickle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params pickleParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult(fmt.Errorf("invalid pickle parameters: %w", err)), nil
	}
	if len(params.Files) == 0 {
		return errorResult(fmt.Errorf("pickle requires at least one file")), nil
	}

	resp, err := pipeline.Run(ctx, pipeline.Request{
		Bundles: []bundle.Bundle{{
			IncludeDirs: params.IncludeDirs,
			Defines:     params.Defines,
			Files:       params.Files,
		}},
		Policy: sv.RenamePolicy{
			Prefix:        params.Prefix,
			Suffix:        params.Suffix,
			RenameExclude: map[string]bool{},
			Exclude:       map[string]bool{},
			Preserve:      map[string]bool{},
		},
		TopModule:     params.TopModule,
		Preserve:      map[string]bool{},
		StripComments: params.StripComments,
		KeepDefines:   true,
		KeepTimescale: true,
	})
	if err != nil {
		return errorResult(err), nil
	}

	content := []mcp.Content{&mcp.TextContent{Text: string(resp.Output)}}
	if len(resp.Warnings) > 0 {
		warningText := ""
		for _, w := range resp.Warnings {
			warningText += w.String() + "\n"
		}
		content = append(content, &mcp.TextContent{Text: warningText})
	}

	return &mcp.CallToolResult{Content: content}, nil
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
