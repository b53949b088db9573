package mcpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/mcp"
	"github.com/mcprouter/mcprouter/internal/router"
)

func newTestHandler(t *testing.T) *HTTPHandler {
	t.Helper()
	reg := mcp.NewRegistry(t.TempDir(), zap.NewNop())
	r := router.New(reg)
	s := New(r, false, t.TempDir(), "test")
	return NewHTTPHandler(s)
}

func doRPC(t *testing.T, h *HTTPHandler, method string, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	body := map[string]any{"jsonrpc": "2.0", "id": 1, "method": method}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_RejectsUninitializedSession(t *testing.T) {
	h := newTestHandler(t)
	rec := doRPC(t, h, "tools/list", "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeNotInitialized {
		t.Fatalf("expected error code %d, got %+v", codeNotInitialized, resp.Error)
	}
}

func TestHTTPHandler_InitializeThenToolsList(t *testing.T) {
	h := newTestHandler(t)

	initRec := doRPC(t, h, "initialize", "")
	if initRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for initialize, got %d", initRec.Code)
	}
	sessionID := initRec.Header().Get(sessionHeader)
	if sessionID == "" {
		t.Fatal("expected a session id to be returned from initialize")
	}

	listRec := doRPC(t, h, "tools/list", sessionID)
	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for tools/list after initialize, got %d: %s", listRec.Code, listRec.Body.String())
	}
}

func TestHTTPHandler_UnknownMethod(t *testing.T) {
	h := newTestHandler(t)
	initRec := doRPC(t, h, "initialize", "")
	sessionID := initRec.Header().Get(sessionHeader)

	rec := doRPC(t, h, "nonexistent/method", sessionID)
	var resp jsonrpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestHTTPHandler_UnregisteredToolCall_ReturnsResultNotProtocolError(t *testing.T) {
	h := newTestHandler(t)
	initRec := doRPC(t, h, "initialize", "")
	sessionID := initRec.Header().Get(sessionHeader)

	body := map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "tools/call",
		"params": map[string]any{"name": "mcp.router.add", "arguments": map[string]any{}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(data))
	req.Header.Set(sessionHeader, sessionID)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected a successful JSON-RPC envelope, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("expected no protocol-level error, got %+v", resp.Error)
	}

	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if !bytes.Contains(resultJSON, []byte("INTERNAL_ERROR")) {
		t.Fatalf("expected result payload to carry code INTERNAL_ERROR, got %s", resultJSON)
	}
}

func TestHTTPHandler_PingAllowedBeforeInitialize(t *testing.T) {
	h := newTestHandler(t)
	rec := doRPC(t, h, "ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ping to succeed before initialize, got %d", rec.Code)
	}
}

func TestServer_ToolsIncludesCoreVocabulary(t *testing.T) {
	reg := mcp.NewRegistry(t.TempDir(), zap.NewNop())
	r := router.New(reg)
	s := New(r, false, t.TempDir(), "test")

	names := map[string]bool{}
	for _, tool := range s.Tools() {
		names[tool.Name] = true
	}
	for _, want := range []string{"mcp.router.use", "mcp.router.list", "mcp.router.help", "mcp.router.call"} {
		if !names[want] {
			t.Errorf("expected tool %q to be registered", want)
		}
	}
	if names["mcp.router.add"] {
		t.Error("expected management tools to be absent when allowInstanceManagement is false")
	}
}

func TestServer_ManagementToolsGatedOn(t *testing.T) {
	reg := mcp.NewRegistry(t.TempDir(), zap.NewNop())
	r := router.New(reg)
	s := New(r, true, t.TempDir(), "test")

	names := map[string]bool{}
	for _, tool := range s.Tools() {
		names[tool.Name] = true
	}
	for _, want := range []string{"mcp.router.add", "mcp.router.remove", "mcp.router.enable", "mcp.router.disable"} {
		if !names[want] {
			t.Errorf("expected management tool %q to be registered when allowed", want)
		}
	}
}
