// Package metrics exposes books-mcp Prometheus metrics.
//
// A Recorder owns its own registry and implements both auth.Observer
// (session lifecycle and denials) and packs.Recorder (tool calls). The
// gateway mounts Recorder.Handler at the configured metrics path.
//
// Exported series:
//
//	books_mcp_tool_calls_total{tool,outcome}
//	books_mcp_tool_call_duration_seconds{tool}
//	books_mcp_sessions_created_total
//	books_mcp_sessions_ended_total{reason}
//	books_mcp_auth_denials_total{kind}
//	books_mcp_active_connections
package metrics
