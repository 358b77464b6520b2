// ABOUTME: Tests for the MCP HTTP server including session handling and tool execution.
// ABOUTME: Runs the real dispatcher, gate and built-in packs behind httptest.

package mcp

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389/books-mcp/internal/auth"
	"github.com/2389/books-mcp/internal/books"
	"github.com/2389/books-mcp/internal/builtins"
	"github.com/2389/books-mcp/internal/exchange"
	"github.com/2389/books-mcp/internal/packs"
)

const testCatalog = `Title,Authors,Category,Publish Date (Year)
Learning Python,Mark Lutz,Programming,2013
Dune,Frank Herbert,Science Fiction,1965
`

type testEnv struct {
	server *Server
	gate   *auth.Gate
	mux    *http.ServeMux
	http   *httptest.Server
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	registry := packs.NewRegistry(logger)
	codec, err := auth.NewCodec([]byte("mcp-test-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	gate, err := auth.NewGate(auth.GateConfig{
		Store:      auth.NewMemoryStore(nil),
		Codec:      codec,
		Classifier: registry,
		TTL:        time.Hour,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	repo, err := books.Parse(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatalf("books.Parse: %v", err)
	}
	if err := builtins.RegisterAll(registry, builtins.Deps{Gate: gate, Books: repo, Rates: exchange.DefaultRates()}); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	dispatcher, err := packs.NewDispatcher(packs.DispatcherConfig{Registry: registry, Gate: gate, Logger: logger})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	server, err := NewServer(Config{Dispatcher: dispatcher, Releaser: gate, Logger: logger, Version: "test"})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	mux.Handle("/", server.DocsHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return &testEnv{server: server, gate: gate, mux: mux, http: ts}
}

func (e *testEnv) post(t *testing.T, sessionID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.http.URL+"/mcp", strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) initialize(t *testing.T) string {
	t.Helper()
	resp := e.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize status = %d", resp.StatusCode)
	}
	sessionID := resp.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize did not return Mcp-Session-Id")
	}
	return sessionID
}

func decodeResponse(t *testing.T, resp *http.Response) JSONRPCResponse {
	t.Helper()
	var out JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

type toolResult struct {
	Content []MCPContent   `json:"content"`
	Data    map[string]any `json:"structuredContent"`
	IsError bool           `json:"isError"`
}

func (e *testEnv) callTool(t *testing.T, sessionID, name, args string) toolResult {
	t.Helper()
	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"` + name + `","arguments":` + args + `}}`
	rpc := decodeResponse(t, e.post(t, sessionID, body))
	if rpc.Error != nil {
		t.Fatalf("tools/call %s: unexpected JSON-RPC error %+v", name, rpc.Error)
	}
	raw, _ := json.Marshal(rpc.Result)
	var result toolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	return result
}

func TestInitialize(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	if resp.Header.Get("Mcp-Session-Id") == "" {
		t.Fatal("expected Mcp-Session-Id header")
	}
	rpc := decodeResponse(t, resp)
	result := rpc.Result.(map[string]any)
	if result["protocolVersion"] != "2025-03-26" {
		t.Errorf("protocolVersion = %v, want the requested version", result["protocolVersion"])
	}
	if info := result["serverInfo"].(map[string]any); info["name"] != "books-mcp" || info["version"] != "test" {
		t.Errorf("unexpected serverInfo: %v", info)
	}

	rpc = decodeResponse(t, env.post(t, "", `{"jsonrpc":"2.0","id":2,"method":"initialize","params":{"protocolVersion":"1999-01-01"}}`))
	if v := rpc.Result.(map[string]any)["protocolVersion"]; v != latestProtocolVersion {
		t.Errorf("protocolVersion = %v, want %s for unsupported request", v, latestProtocolVersion)
	}

	if env.server.Sessions() != 2 {
		t.Errorf("Sessions() = %d, want 2", env.server.Sessions())
	}
}

func TestToolsList(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	rpc := decodeResponse(t, env.post(t, sessionID, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	raw, _ := json.Marshal(rpc.Result)
	var result MCPListToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		if !json.Valid(tool.InputSchema) {
			t.Errorf("tool %s has invalid schema", tool.Name)
		}
	}
	want := "authenticate,logout,session_status,books_query,exchange_convert"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("tools = %s, want %s", got, want)
	}
}

func TestToolsCall_SessionFlow(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	result := env.callTool(t, sessionID, "books_query", `{}`)
	if !result.IsError || result.Data["error"] != "authentication_required" {
		t.Fatalf("expected authentication_required, got %+v", result)
	}

	result = env.callTool(t, sessionID, "authenticate", `{"username":"alice"}`)
	if result.IsError || result.Data["success"] != true {
		t.Fatalf("authenticate failed: %+v", result)
	}

	result = env.callTool(t, sessionID, "books_query", `{"title":"python"}`)
	if result.IsError {
		t.Fatalf("books_query failed: %+v", result)
	}
	if result.Data["authenticated_user"] != "alice" {
		t.Errorf("authenticated_user = %v, want alice", result.Data["authenticated_user"])
	}
	if result.Data["count"] != float64(1) {
		t.Errorf("count = %v, want 1", result.Data["count"])
	}

	// Text content and structuredContent carry the same object.
	var fromText map[string]any
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), &fromText); err != nil {
		t.Fatalf("text content is not JSON: %v", err)
	}
	if fromText["authenticated_user"] != "alice" {
		t.Errorf("text content missing identity: %v", fromText)
	}
}

func TestToolsCall_ConnectionsAreIsolated(t *testing.T) {
	env := setupTestEnv(t)
	first := env.initialize(t)
	second := env.initialize(t)

	env.callTool(t, first, "authenticate", `{"username":"alice"}`)

	result := env.callTool(t, second, "exchange_convert", `{"from_currency":"USD","to_currency":"EUR","amount":10}`)
	if !result.IsError || result.Data["error"] != "authentication_required" {
		t.Errorf("second session should not inherit the first session's login: %+v", result)
	}
}

func TestToolsCall_UnknownTool(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	rpc := decodeResponse(t, env.post(t, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope"}}`))
	if rpc.Error == nil {
		t.Fatal("expected JSON-RPC error")
	}
	if rpc.Error.Code != JSONRPCInvalidParams {
		t.Errorf("code = %d, want %d", rpc.Error.Code, JSONRPCInvalidParams)
	}
	if rpc.Error.Message != "Unknown tool: nope" {
		t.Errorf("message = %q", rpc.Error.Message)
	}
}

func TestToolsCall_MissingName(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	rpc := decodeResponse(t, env.post(t, sessionID, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`))
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInvalidParams {
		t.Errorf("expected invalid params error, got %+v", rpc.Error)
	}
}

func TestPost_SessionRequired(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.post(t, "", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing session status = %d, want 400", resp.StatusCode)
	}

	resp = env.post(t, "does-not-exist", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestPost_ProtocolErrors(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", `{not json`, JSONRPCParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, JSONRPCInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"resources/list"}`, JSONRPCMethodNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpc := decodeResponse(t, env.post(t, sessionID, tt.body))
			if rpc.Error == nil || rpc.Error.Code != tt.code {
				t.Errorf("expected error code %d, got %+v", tt.code, rpc.Error)
			}
		})
	}
}

func TestPost_BodyTooLarge(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	body := `{"jsonrpc":"2.0","id":1,"method":"ping","params":"` + strings.Repeat("x", MaxRequestBodySize) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Mcp-Session-Id", sessionID)
	rr := httptest.NewRecorder()
	env.mux.ServeHTTP(rr, req)

	var rpc JSONRPCResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &rpc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rpc.Error == nil || rpc.Error.Code != JSONRPCInvalidRequest || rpc.Error.Message != "request body too large" {
		t.Errorf("expected body too large error, got %+v", rpc.Error)
	}
}

func TestPost_UnsupportedProtocolVersionHeader(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	req, _ := http.NewRequest(http.MethodPost, env.http.URL+"/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	req.Header.Set("Mcp-Session-Id", sessionID)
	req.Header.Set("Mcp-Protocol-Version", "1999-01-01")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPost_PingAndNotification(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)

	rpc := decodeResponse(t, env.post(t, sessionID, `{"jsonrpc":"2.0","id":"p","method":"ping"}`))
	if rpc.Error != nil || string(rpc.ID) != `"p"` {
		t.Errorf("unexpected ping response: %+v", rpc)
	}

	resp := env.post(t, sessionID, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("notification status = %d, want 202", resp.StatusCode)
	}
}

func TestDelete_ReleasesSession(t *testing.T) {
	env := setupTestEnv(t)
	sessionID := env.initialize(t)
	env.callTool(t, sessionID, "authenticate", `{"username":"alice"}`)

	if env.gate.Connections() != 1 {
		t.Fatalf("Connections() = %d, want 1", env.gate.Connections())
	}

	req, _ := http.NewRequest(http.MethodDelete, env.http.URL+"/mcp", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", resp.StatusCode)
	}
	if env.gate.Connections() != 0 {
		t.Errorf("Connections() = %d after DELETE, want 0", env.gate.Connections())
	}

	resp = env.post(t, sessionID, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after DELETE = %d, want 404", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, env.http.URL+"/mcp", nil)
	req.Header.Set("Mcp-Session-Id", sessionID)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want 404", resp.StatusCode)
	}
}

func TestClose_ReleasesAllSessions(t *testing.T) {
	env := setupTestEnv(t)
	for _, user := range []string{"alice", "bob"} {
		env.callTool(t, env.initialize(t), "authenticate", `{"username":"`+user+`"}`)
	}

	env.server.Close(t.Context())
	if env.server.Sessions() != 0 || env.gate.Connections() != 0 {
		t.Errorf("Close left sessions=%d connections=%d", env.server.Sessions(), env.gate.Connections())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTestEnv(t)

	resp, err := http.Get(env.http.URL + "/mcp")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /mcp status = %d, want 405", resp.StatusCode)
	}
}

func TestNewServer_RequiresDispatcher(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Error("expected error without dispatcher")
	}
}
