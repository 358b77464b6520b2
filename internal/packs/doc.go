// Package packs provides the tool catalog and the dispatcher that runs tool
// calls for books-mcp.
//
// # Overview
//
// Tools are grouped into built-in packs (see internal/builtins). Each tool
// declares its name, input schema, access class and whether calls are
// audited. Tool names are globally unique.
//
// # Architecture
//
//   - Registry: tracks packs and their tools, and classifies operations for
//     the authorization gate
//   - Dispatcher: authorizes, decodes arguments, runs handlers and records
//     the outcome
//   - Args / Failure: argument decoding and structured tool errors
//
// # Dispatch
//
// For every call the dispatcher:
//
//  1. Looks up the tool; an unknown name returns ErrUnknownOperation
//  2. Asks the gate to authorize protected tools; a denial becomes an
//     error payload and the handler never runs
//  3. Decodes the arguments and invokes the handler
//  4. Adds authenticated_user and user_id to protected results
//  5. Records metrics and, for audited tools, an audit entry
//
// Denials and failures are returned as payloads of the form
//
//	{"error": "<kind>", "message": "...", "hint": "..."}
//
// with Result.IsError set, never as Go errors.
//
// # Usage
//
//	registry := packs.NewRegistry(logger)
//	gate, _ := auth.NewGate(auth.GateConfig{Classifier: registry, ...})
//	builtins.RegisterAll(registry, builtins.Deps{Gate: gate, ...})
//	d, _ := packs.NewDispatcher(packs.DispatcherConfig{Registry: registry, Gate: gate})
//	res, err := d.Dispatch(ctx, conn, "books_query", args)
package packs
