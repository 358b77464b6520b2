// Package store persists the books-mcp audit log in SQLite.
//
// Every audited tool call (authenticate, logout, books_query,
// exchange_convert) appends one AuditEntry with the caller, the tool and the
// outcome. Entries are listed newest first:
//
//	s, err := store.NewSQLiteStore("/var/lib/books-mcp/audit.db")
//	entries, err := s.ListAuditLog(ctx, store.AuditFilter{Limit: 20})
//
// The driver is modernc.org/sqlite, so no cgo toolchain is needed.
package store
