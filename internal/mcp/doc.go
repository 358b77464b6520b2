// Package mcp implements the Model Context Protocol transports for books-mcp.
//
// # Protocol
//
// JSON-RPC 2.0 with the MCP methods initialize, ping, tools/list and
// tools/call. Notifications are accepted and never answered.
//
// # Transports
//
// Streamable HTTP:
//
//   - POST /mcp carries one JSON-RPC message per request (max 1MB)
//   - initialize returns an Mcp-Session-Id header that must accompany every
//     later request
//   - DELETE /mcp with the header ends the session
//
// stdio (ServeStdio): newline-delimited JSON-RPC, one message per line.
//
// # Connections
//
// The authorization gate tracks one active session per connection. Over
// HTTP the connection is the Mcp-Session-Id; over stdio it is the process.
// Ending a connection (DELETE, end of stdin, shutdown) releases its session.
//
// # Tool Results
//
// tools/call results carry the tool payload twice, as JSON text content and
// as structuredContent:
//
//	{
//	  "content": [{"type": "text", "text": "{\"error\":\"authentication_required\",...}"}],
//	  "structuredContent": {"error": "authentication_required", ...},
//	  "isError": true
//	}
//
// Denials and tool failures are results with isError set. Only an unknown
// tool name is a JSON-RPC error (-32602).
//
// # Docs
//
// DocsHandler renders the tool catalog as HTML for GET /.
package mcp
