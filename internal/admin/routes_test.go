package admin

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

func newTestRouterForRoutes(t *testing.T) *router.Router {
	t.Helper()
	reg := mcp.NewRegistry(t.TempDir(), zap.NewNop())
	return router.New(reg)
}

func TestRoutes_AddInstance(t *testing.T) {
	r := newTestRouterForRoutes(t)
	handler := Routes(r)

	body, _ := json.Marshal(map[string]any{
		"provider": "weather",
		"name":     "weather",
		"type":     "stdio",
		"command":  "python3",
		"args":     []string{"weather.py"},
		"env":      map[string]string{},
		"isActive": false,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/instances", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" || resp["detail"] != "Done" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestRoutes_RemoveUnknownInstance_ReturnsErrorEnvelope(t *testing.T) {
	r := newTestRouterForRoutes(t)
	handler := Routes(r)

	req := httptest.NewRequest(http.MethodDelete, "/api/instances/ghost", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "error" {
		t.Fatalf("expected error status, got %v", resp)
	}
}

func TestRoutes_CallRejectsDangerousToolName(t *testing.T) {
	r := newTestRouterForRoutes(t)
	handler := Routes(r)

	body, _ := json.Marshal(map[string]any{"instance": "weather", "tool": "../etc/passwd"})
	req := httptest.NewRequest(http.MethodPost, "/api/call", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for dangerous tool name, got %d", rec.Code)
	}
}

func TestRoutes_Config_ReportsCurrentInstance(t *testing.T) {
	r := newTestRouterForRoutes(t)
	handler := Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := resp["current_instance"]; !ok {
		t.Fatalf("expected current_instance in config response, got %v", resp)
	}
}
