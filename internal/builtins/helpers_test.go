// ABOUTME: Shared helpers for built-in pack tests
// ABOUTME: Builds a gate over an in-memory store with a controllable clock

package builtins

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/packs"
)

func findHandler(pack *packs.BuiltinPack, name string) packs.ToolHandler {
	for _, tool := range pack.Tools {
		if tool.Definition.Name == name {
			return tool.Handler
		}
	}
	return nil
}

func findDefinition(pack *packs.BuiltinPack, name string) *packs.ToolDefinition {
	for _, tool := range pack.Tools {
		if tool.Definition.Name == name {
			return tool.Definition
		}
	}
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

// publicOnly classifies every operation as public except the ones listed.
type publicOnly map[string]bool

func (p publicOnly) Access(op string) (auth.Access, bool) {
	if p[op] {
		return auth.AccessProtected, true
	}
	return auth.AccessPublic, true
}

func newTestGate(t *testing.T, clock *testClock, creds *auth.Credentials) *auth.Gate {
	t.Helper()
	codec, err := auth.NewCodec([]byte("builtins-test-secret"), auth.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	gate, err := auth.NewGate(auth.GateConfig{
		Store:       auth.NewMemoryStore(clock.Now),
		Codec:       codec,
		Credentials: creds,
		Classifier:  publicOnly{"books_query": true},
		TTL:         time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return gate
}

func invoke(t *testing.T, handler packs.ToolHandler, conn, raw string) (packs.Payload, error) {
	t.Helper()
	if handler == nil {
		t.Fatal("handler not found")
	}
	args, err := packs.ParseArgs(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParseArgs(%s): %v", raw, err)
	}
	return handler(context.Background(), packs.Call{Conn: conn, Args: args})
}

func failureKind(t *testing.T, err error) string {
	t.Helper()
	f, ok := err.(*packs.Failure)
	if !ok {
		t.Fatalf("expected *packs.Failure, got %T (%v)", err, err)
	}
	return f.Kind
}
