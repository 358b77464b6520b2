// Package config handles configuration loading for books-mcp.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Unset fields get defaults, and the result is validated.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path from the BOOKS_MCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/books-mcp/config.yaml
//  3. ~/.config/books-mcp/config.yaml
//
// Relative data and database paths are resolved against the directory of
// the configuration file.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${BOOKS_MCP_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"   # MCP, docs, health, metrics
//	  grpc_addr: ""                 # gRPC health service, empty to disable
//
//	auth:
//	  jwt_secret: "${BOOKS_MCP_JWT_SECRET}"   # required
//	  users:                                  # optional bcrypt hashes
//	    alice: "$2a$10$..."
//
//	session:
//	  ttl: "1h"
//	  sweep_interval: ""            # empty: expired sessions are purged lazily
//	  store: "memory"               # memory, redis
//	  redis:
//	    addr: "localhost:6379"
//	    prefix: "books-mcp:session:"
//	    retention: "2h"             # must exceed ttl
//
//	data:
//	  books_path: "data/books.csv"
//	  rates_path: "rates.toml"      # optional
//
//	database:
//	  path: "audit.db"              # empty disables the audit log
//
//	logging:
//	  level: "info"                 # debug, info, warn, error
//	  format: "text"                # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Usage
//
//	path, err := config.Path()
//	cfg, err := config.Load(path)
package config
