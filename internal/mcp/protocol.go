// ABOUTME: JSON-RPC 2.0 and MCP message types plus transport-independent method handling
// ABOUTME: Shared by the Streamable HTTP endpoint and the stdio loop

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/books-mcp/internal/packs"
)

// Supported MCP protocol versions
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// latestProtocolVersion is the version we advertise when the client asks
// for one we do not support.
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for a request (1MB).
const MaxRequestBodySize = 1 << 20

const serverInstructions = "Call authenticate first. books_query and exchange_convert require an active session on this connection; session_status reports how long it has left."

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether the request carries no id.
func (r JSONRPCRequest) isNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// MCP-specific types

// MCPToolInfo represents an MCP tool definition.
type MCPToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// MCPListToolsResult is the result for tools/list.
type MCPListToolsResult struct {
	Tools []MCPToolInfo `json:"tools"`
}

// MCPCallToolParams are the params for tools/call.
type MCPCallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MCPCallToolResult is the result for tools/call. StructuredContent carries
// the same object as the text content.
type MCPCallToolResult struct {
	Content           []MCPContent  `json:"content"`
	StructuredContent packs.Payload `json:"structuredContent,omitempty"`
	IsError           bool          `json:"isError,omitempty"`
}

// MCPContent represents content in a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// Dispatcher runs tool calls for a connection.
type Dispatcher interface {
	Tools() []*packs.ToolDefinition
	Dispatch(ctx context.Context, conn, name string, rawArgs json.RawMessage) (*packs.Result, error)
}

// Releaser forgets a connection's authentication state when it closes.
type Releaser interface {
	Release(ctx context.Context, conn string) error
}

// handleRequest runs a non-notification request on conn.
func (s *Server) handleRequest(ctx context.Context, conn string, req JSONRPCRequest) JSONRPCResponse {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = s.initializeResult(req.Params)
	case "ping":
		resp.Result = struct{}{}
	case "tools/list":
		resp.Result = s.toolsList()
	case "tools/call":
		result, rpcErr := s.toolsCall(ctx, conn, req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
	default:
		resp.Error = &JSONRPCError{Code: JSONRPCMethodNotFound, Message: "method not found"}
	}
	return resp
}

// initializeResult negotiates the protocol version: a supported requested
// version is echoed back, anything else gets the latest.
func (s *Server) initializeResult(raw json.RawMessage) map[string]any {
	version := latestProtocolVersion
	var params initializeParams
	if len(raw) > 0 && json.Unmarshal(raw, &params) == nil && supportedProtocolVersions[params.ProtocolVersion] {
		version = params.ProtocolVersion
	}

	return map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    "books-mcp",
			"version": s.version,
		},
		"instructions": serverInstructions,
	}
}

func (s *Server) toolsList() MCPListToolsResult {
	defs := s.dispatcher.Tools()
	result := MCPListToolsResult{Tools: make([]MCPToolInfo, len(defs))}
	for i, def := range defs {
		result.Tools[i] = MCPToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema(),
		}
	}
	return result
}

func (s *Server) toolsCall(ctx context.Context, conn string, raw json.RawMessage) (*MCPCallToolResult, *JSONRPCError) {
	var params MCPCallToolParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "invalid params"}
		}
	}
	if params.Name == "" {
		return nil, &JSONRPCError{Code: JSONRPCInvalidParams, Message: "tool name is required"}
	}

	res, err := s.dispatcher.Dispatch(ctx, conn, params.Name, params.Arguments)
	if err != nil {
		return nil, s.toolError(params.Name, conn, err)
	}

	text, err := json.Marshal(res.Payload)
	if err != nil {
		s.logger.Error("failed to encode tool result", "tool_name", params.Name, "error", err)
		return nil, &JSONRPCError{Code: JSONRPCInternalError, Message: "failed to encode tool result"}
	}

	return &MCPCallToolResult{
		Content:           []MCPContent{{Type: "text", Text: string(text)}},
		StructuredContent: res.Payload,
		IsError:           res.IsError,
	}, nil
}

// toolError maps a hard dispatch error to a JSON-RPC error.
func (s *Server) toolError(name, conn string, err error) *JSONRPCError {
	switch {
	case errors.Is(err, packs.ErrUnknownOperation):
		return &JSONRPCError{
			Code:    JSONRPCInvalidParams,
			Message: fmt.Sprintf("Unknown tool: %s", name),
			Data:    map[string]any{"error": "unknown_operation", "hint": "Call tools/list for the available tools"},
		}
	case errors.Is(err, context.Canceled):
		return &JSONRPCError{Code: JSONRPCInternalError, Message: "request cancelled"}
	default:
		s.logger.Warn("tool execution failed", "tool_name", name, "conn", conn, "error", err)
		return &JSONRPCError{Code: JSONRPCInternalError, Message: "tool execution failed"}
	}
}
