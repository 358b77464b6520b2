// Package gateway orchestrates the books-mcp server components.
//
// # Overview
//
// The gateway owns every long-lived component: the book catalog, the
// session store, the authorization gate, the tool registry and dispatcher,
// the MCP server, the audit store and the metrics recorder. New builds them
// in dependency order:
//
//	config -> catalog, rates -> audit store, session store
//	       -> registry -> gate (classifier = registry) -> built-in tools
//	       -> dispatcher (auditor, recorder) -> MCP server (releaser = gate)
//
// # Endpoints
//
//   - POST /mcp, DELETE /mcp - MCP Streamable HTTP
//   - GET / - tool catalog
//   - GET /health - liveness
//   - GET /health/ready - catalog loaded and backends reachable
//   - GET {metrics.path} - Prometheus metrics when enabled
//
// When server.grpc_addr is set (or Tailscale is enabled) a gRPC server
// exposes grpc.health.v1.Health. The "books-mcp" service status follows the
// readiness check.
//
// # Listeners
//
// Without Tailscale the HTTP and gRPC servers bind server.http_addr and
// server.grpc_addr. With Tailscale a tsnet node serves HTTP on :80 (or
// HTTPS on :443 with tailnet certificates, or public Funnel) and gRPC on
// :50051; the configured addresses are ignored.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger, version)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// ServeStdio is the alternative to Run for local clients. Both start the
// optional session sweep (session.sweep_interval). Shutdown releases every
// MCP connection before closing the stores.
package gateway
