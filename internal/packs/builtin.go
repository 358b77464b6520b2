// ABOUTME: Built-in tool types: definitions, handlers, and the packs grouping them
// ABOUTME: Every tool runs in-process and is classified public or protected

package packs

import (
	"context"
	"encoding/json"

	"github.com/2389/books-mcp/internal/auth"
)

// Payload is the structured object a tool call returns.
type Payload map[string]any

// ToolDefinition describes a tool to callers.
type ToolDefinition struct {
	Name            string
	Description     string
	InputSchemaJSON string
	Access          auth.Access
	// Audited tools have every call appended to the audit log.
	Audited bool
}

// InputSchema returns the JSON schema as a raw message.
func (d *ToolDefinition) InputSchema() json.RawMessage {
	if d.InputSchemaJSON == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(d.InputSchemaJSON)
}

// Call carries one invocation to a handler.
type Call struct {
	// Conn identifies the transport connection the call arrived on.
	Conn string
	// Identity is the authorized caller; nil for public tools.
	Identity *auth.Identity
	Args     Args
}

// ToolHandler executes a built-in tool. Returning a *Failure or *auth.Denial
// produces an error payload; any other error is an internal failure.
type ToolHandler func(ctx context.Context, call Call) (Payload, error)

// BuiltinTool represents a tool that executes in the server process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}
