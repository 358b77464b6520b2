// ABOUTME: Session pack: authenticate, logout, and session_status against the gate
// ABOUTME: Public tools; they manage the connection's active session rather than require one

package builtins

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/packs"
)

// DefaultUsername is used when authenticate is called without a username.
const DefaultUsername = "demo_user"

// SessionPack creates the session management pack.
func SessionPack(gate *auth.Gate) *packs.BuiltinPack {
	s := &sessionHandlers{gate: gate}

	authSchema := `{"type":"object","properties":{"username":{"type":"string","description":"Username to authenticate as (defaults to demo_user)"}},"additionalProperties":false}`
	if gate.CredentialsRequired() {
		authSchema = `{"type":"object","properties":{"username":{"type":"string","description":"Configured username"},"password":{"type":"string","description":"Password for the username"}},"required":["username","password"],"additionalProperties":false}`
	}

	return &packs.BuiltinPack{
		ID: "builtin:session",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:            "authenticate",
					Description:     "Create a session for this connection. Required before using books_query or exchange_convert; replaces any current session.",
					InputSchemaJSON: authSchema,
					Access:          auth.AccessPublic,
					Audited:         true,
				},
				Handler: s.Authenticate,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:            "logout",
					Description:     "End the current session. Safe to call when not authenticated.",
					InputSchemaJSON: `{"type":"object","properties":{},"additionalProperties":false}`,
					Access:          auth.AccessPublic,
					Audited:         true,
				},
				Handler: s.Logout,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:            "session_status",
					Description:     "Report whether this connection is authenticated, with session age and seconds until expiry.",
					InputSchemaJSON: `{"type":"object","properties":{},"additionalProperties":false}`,
					Access:          auth.AccessPublic,
				},
				Handler: s.Status,
			},
		},
	}
}

type sessionHandlers struct {
	gate *auth.Gate
}

func (s *sessionHandlers) Authenticate(ctx context.Context, call packs.Call) (packs.Payload, error) {
	username, _, err := call.Args.String("username")
	if err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}

	password, _, err := call.Args.String("password")
	if err != nil {
		return nil, err
	}

	sess, err := s.gate.Authenticate(ctx, call.Conn, username, password)
	if err != nil {
		return nil, err
	}

	return packs.Payload{
		"success":    true,
		"message":    fmt.Sprintf("Successfully authenticated as %s", username),
		"username":   sess.Username,
		"user_id":    sess.UserID,
		"session_id": sess.ID,
		"expires_in": int64(s.gate.TTL().Seconds()),
	}, nil
}

func (s *sessionHandlers) Logout(ctx context.Context, call packs.Call) (packs.Payload, error) {
	username, ok, err := s.gate.Logout(ctx, call.Conn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return packs.Payload{
			"success": true,
			"message": "No active session to logout",
		}, nil
	}
	return packs.Payload{
		"success":  true,
		"message":  fmt.Sprintf("Successfully logged out %s", username),
		"username": username,
	}, nil
}

func (s *sessionHandlers) Status(ctx context.Context, call packs.Call) (packs.Payload, error) {
	st, err := s.gate.Status(ctx, call.Conn)
	if err != nil {
		return nil, err
	}
	if !st.Authenticated {
		return packs.Payload{
			"authenticated": false,
			"message":       "No active session. Use 'authenticate' tool to login.",
		}, nil
	}

	return packs.Payload{
		"authenticated": true,
		"username":      st.Session.Username,
		"user_id":       st.Session.UserID,
		"session_id":    st.Session.ID,
		"session_age":   int64(st.Age.Seconds()),
		"expires_in":    int64(st.ExpiresIn.Seconds()),
		"expired":       st.Expired,
	}, nil
}
