package docgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/crible/extract"
	"github.com/hazyhaar/crible/kit"
)

type preflightRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

// preflightResponse is the agent-facing verdict. Unlike the end-user HTTP
// response it includes trigger names: agents are an operator surface.
type preflightResponse struct {
	OK          bool     `json:"ok"`
	Triggers    []string `json:"triggers,omitempty"`
	UserMessage string   `json:"user_message,omitempty"`
}

type detectRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

type detectResponse struct {
	Format string `json:"format"`
}

// RegisterMCPTools exposes the preflight gate on an MCP server.
func RegisterMCPTools(srv *mcp.Server, engine *Engine) {
	preflightTool := &mcp.Tool{
		Name:        "preflight_check",
		Description: "Check whether a resume file (PDF, DOCX, DOC, TXT, HTML) has a usable machine-readable text layer. Returns ok plus the names of the rules that fired.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filename":       {Type: "string", Description: "Original file name, used as a format hint."},
				"content_base64": {Type: "string", Description: "File bytes, base64-encoded."},
			},
			Required: []string{"content_base64"},
		},
	}

	preflight := func(ctx context.Context, req any) (any, error) {
		r := req.(*preflightRequest)
		data, err := base64.StdEncoding.DecodeString(r.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		v := engine.Evaluate(ctx, data, r.Filename)
		return &preflightResponse{OK: v.OK, Triggers: v.Triggers, UserMessage: v.UserMessage}, nil
	}

	kit.RegisterMCPTool(srv, preflightTool, preflight, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r preflightRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	})

	detectTool := &mcp.Tool{
		Name:        "detect_format",
		Description: "Identify the document format of a file from its magic bytes and name.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"filename":       {Type: "string"},
				"content_base64": {Type: "string", Description: "File bytes, base64-encoded."},
			},
			Required: []string{"content_base64"},
		},
	}

	detect := func(ctx context.Context, req any) (any, error) {
		r := req.(*detectRequest)
		data, err := base64.StdEncoding.DecodeString(r.ContentBase64)
		if err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		format, err := extract.DetectFormat(data, r.Filename)
		if err != nil {
			return nil, err
		}
		return &detectResponse{Format: string(format)}, nil
	}

	kit.RegisterMCPTool(srv, detectTool, detect, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r detectRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	})
}
