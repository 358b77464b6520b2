// ABOUTME: Dispatches tool calls through the authorization gate to built-in handlers
// ABOUTME: Wraps protected results with the caller identity and records audit and metrics

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/store"
)

// Call outcomes used for metrics and the audit log.
const (
	OutcomeOK     = "ok"
	OutcomeDenied = "denied"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Authorizer resolves the caller of an operation on a connection.
type Authorizer interface {
	Authorize(ctx context.Context, conn, op string) (*auth.Identity, error)
}

// Auditor appends audit entries.
type Auditor interface {
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// Recorder observes completed tool calls.
type Recorder interface {
	ToolCall(tool, outcome string, elapsed time.Duration)
}

// Result is the outcome of a dispatched call.
type Result struct {
	Payload Payload
	IsError bool
}

// DispatcherConfig contains configuration options for the Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	Gate     Authorizer
	Auditor  Auditor  // optional
	Recorder Recorder // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// Dispatcher routes tool calls to registered handlers.
type Dispatcher struct {
	registry *Registry
	gate     Authorizer
	auditor  Auditor
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Gate == nil {
		return nil, errors.New("gate is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		registry: cfg.Registry,
		gate:     cfg.Gate,
		auditor:  cfg.Auditor,
		recorder: cfg.Recorder,
		logger:   logger,
		now:      now,
	}, nil
}

// Tools returns the definitions of every dispatchable tool.
func (d *Dispatcher) Tools() []*ToolDefinition {
	return d.registry.GetAllTools()
}

// Dispatch runs the named tool for the caller on conn.
//
// Unknown names fail with ErrUnknownOperation. Protected tools are authorized
// first; a denial is returned as an error payload without running the
// handler. Results of protected tools, errors included, carry
// authenticated_user and user_id.
func (d *Dispatcher) Dispatch(ctx context.Context, conn, name string, rawArgs json.RawMessage) (*Result, error) {
	start := d.now()

	tool := d.registry.GetBuiltinTool(name)
	if tool == nil {
		d.logger.Debug("unknown tool requested", "tool_name", name, "conn", conn)
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	def := tool.Definition

	var identity *auth.Identity
	if def.Access == auth.AccessProtected {
		id, err := d.gate.Authorize(ctx, conn, name)
		if err != nil {
			payload, kind, ok := errorPayload(err)
			if !ok {
				d.finish(ctx, def, conn, nil, nil, OutcomeError, "", start)
				return nil, fmt.Errorf("authorizing %s: %w", name, err)
			}
			d.finish(ctx, def, conn, nil, payload, OutcomeDenied, kind, start)
			return &Result{Payload: payload, IsError: true}, nil
		}
		identity = id
		ctx = auth.WithIdentity(ctx, identity)
	}

	result, err := d.run(ctx, tool, Call{Conn: conn, Identity: identity}, rawArgs)
	if err != nil {
		d.finish(ctx, def, conn, identity, nil, OutcomeError, "", start)
		return nil, err
	}

	if identity != nil {
		result.Payload["authenticated_user"] = identity.Username
		result.Payload["user_id"] = identity.UserID
	}

	outcome, kind := OutcomeOK, ""
	if result.IsError {
		outcome = OutcomeFailed
		kind, _ = result.Payload["error"].(string)
	}
	d.finish(ctx, def, conn, identity, result.Payload, outcome, kind, start)
	return result, nil
}

// run decodes arguments and invokes the handler, turning failures and
// denials into error payloads.
func (d *Dispatcher) run(ctx context.Context, tool *BuiltinTool, call Call, rawArgs json.RawMessage) (*Result, error) {
	args, err := ParseArgs(rawArgs)
	if err == nil {
		call.Args = args
		var payload Payload
		payload, err = tool.Handler(ctx, call)
		if err == nil {
			if payload == nil {
				payload = Payload{}
			}
			return &Result{Payload: payload}, nil
		}
	}

	if payload, _, ok := errorPayload(err); ok {
		return &Result{Payload: payload, IsError: true}, nil
	}

	d.logger.Warn("builtin tool error",
		"tool_name", tool.Definition.Name,
		"conn", call.Conn,
		"error", err,
	)
	return nil, fmt.Errorf("running %s: %w", tool.Definition.Name, err)
}

// finish records metrics, logs, and appends the audit entry for a call.
func (d *Dispatcher) finish(ctx context.Context, def *ToolDefinition, conn string, identity *auth.Identity, payload Payload, outcome, kind string, start time.Time) {
	elapsed := d.now().Sub(start)
	if d.recorder != nil {
		d.recorder.ToolCall(def.Name, outcome, elapsed)
	}

	d.logger.Debug("tool call",
		"tool_name", def.Name,
		"conn", conn,
		"outcome", outcome,
		"error_kind", kind,
		"elapsed", elapsed,
	)

	if d.auditor == nil || !def.Audited {
		return
	}

	entry := &store.AuditEntry{
		Tool:      def.Name,
		Outcome:   outcome,
		Timestamp: start.UTC(),
		Detail:    map[string]any{"conn": conn},
	}
	if identity != nil {
		entry.UserID = identity.UserID
		entry.Username = identity.Username
	} else {
		// Session tools report the identity they acted on in their payload.
		entry.UserID, _ = payload["user_id"].(string)
		entry.Username, _ = payload["username"].(string)
		if entry.UserID == "" && entry.Username != "" {
			entry.UserID = auth.DeriveUserID(entry.Username)
		}
	}
	if kind != "" {
		entry.Detail["error"] = kind
	}

	// Auditing must not fail the call it describes.
	if err := d.auditor.AppendAuditLog(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("failed to append audit entry", "tool_name", def.Name, "error", err)
	}
}
