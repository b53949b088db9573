package router

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/mcp"
	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/routererr"
)

func newTestRouter(t *testing.T) (*Router, *mcp.Registry) {
	t.Helper()
	reg := mcp.NewRegistry(t.TempDir(), zap.NewNop())
	return New(reg), reg
}

func TestUse_UnknownInstance_ReturnsErrorString(t *testing.T) {
	r, _ := newTestRouter(t)
	if got := r.Use("ghost"); got != "Error: Instance not found: ghost" {
		t.Fatalf("Use(ghost) = %q", got)
	}
}

func TestAddRemove_DoneVocabulary(t *testing.T) {
	r, _ := newTestRouter(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: false, Provider: "weather",
	}
	if got := r.Add(context.Background(), "weather", settings); got != "Done" {
		t.Fatalf("Add = %q, want Done", got)
	}
	if got := r.Add(context.Background(), "weather", settings); got == "Done" {
		t.Fatal("expected duplicate Add to fail")
	}
	if got := r.Remove("weather"); got != "Done" {
		t.Fatalf("Remove = %q, want Done", got)
	}
	if got := r.Remove("weather"); got == "Done" {
		t.Fatal("expected second Remove to fail")
	}
}

func TestCall_RequiresSelectedInstanceWhenNameOmitted(t *testing.T) {
	r, _ := newTestRouter(t)
	if _, err := r.Call(context.Background(), "", "some_tool", nil); err == nil {
		t.Fatal("expected an error when no instance is selected and none is named")
	}
}

func TestCall_DisabledInstance_ReturnsConfigErrorCode(t *testing.T) {
	r, _ := newTestRouter(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: true, Provider: "weather",
	}
	if got := r.Add(context.Background(), "weather", settings); got != "Done" {
		t.Fatalf("Add = %q", got)
	}
	if got := r.Disable("weather"); got != "Done" {
		t.Fatalf("Disable = %q", got)
	}

	_, err := r.Call(context.Background(), "weather", "some_tool", nil)
	if err == nil {
		t.Fatal("expected an error calling a disabled instance")
	}
	if code := routererr.AsRouterError(err).Code; code != routererr.CodeConfig {
		t.Fatalf("Call on disabled instance: code = %q, want %q", code, routererr.CodeConfig)
	}
}

func TestCall_NotConnectedInstance_ReturnsConfigErrorCode(t *testing.T) {
	r, _ := newTestRouter(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: true, Provider: "weather",
	}
	if got := r.Add(context.Background(), "weather", settings); got != "Done" {
		t.Fatalf("Add = %q", got)
	}

	_, err := r.Call(context.Background(), "weather", "some_tool", nil)
	if err == nil {
		t.Fatal("expected an error calling a not-connected instance")
	}
	if code := routererr.AsRouterError(err).Code; code != routererr.CodeConfig {
		t.Fatalf("Call on not-connected instance: code = %q, want %q", code, routererr.CodeConfig)
	}
}

func TestList_EmptyRegistry(t *testing.T) {
	r, _ := newTestRouter(t)
	if got := r.List(); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestEnableDisable_DoneVocabulary(t *testing.T) {
	r, _ := newTestRouter(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: false, Provider: "weather",
	}
	if got := r.Add(context.Background(), "weather", settings); got != "Done" {
		t.Fatalf("Add = %q", got)
	}
	if got := r.Disable("weather"); got != "Done" {
		t.Fatalf("Disable = %q", got)
	}
	if got := r.Disable("ghost"); got == "Done" {
		t.Fatal("expected Disable of unknown instance to fail")
	}
}
