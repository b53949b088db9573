package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/watcher"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(t.TempDir(), zap.NewNop())
}

func TestRegistry_LoadAll_EmptyDataDir(t *testing.T) {
	r := newTestRegistry(t)
	connected, errs := r.LoadAll(context.Background())
	if connected != 0 || len(errs) != 0 {
		t.Fatalf("expected no instances in an empty data dir, got connected=%d errs=%v", connected, errs)
	}
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get("ghost"); err == nil {
		t.Fatal("expected an error for a nonexistent instance")
	}
}

func TestRegistry_AddInactiveThenDisable_ClearsIsActive(t *testing.T) {
	r := newTestRegistry(t)
	settings := &mcpconfig.Settings{
		Name:     "weather",
		Type:     "stdio",
		Command:  "python3",
		Args:     []string{"weather.py"},
		Env:      map[string]string{},
		IsActive: false, // avoid actually dialing a transport in this test
		Provider: "weather",
	}

	if err := r.Add(context.Background(), "weather", settings); err != nil {
		t.Fatalf("Add: %v", err)
	}

	inst, err := r.Get("weather")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if inst.Session != nil {
		t.Fatal("expected no session for an inactive instance")
	}

	if err := r.Disable("weather"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	inst, _ = r.Get("weather")
	if inst.Settings.IsActive {
		t.Fatal("expected IsActive to be false after Disable")
	}
}

func TestRegistry_Add_RejectsDuplicateName(t *testing.T) {
	r := newTestRegistry(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: false, Provider: "weather",
	}
	if err := r.Add(context.Background(), "weather", settings); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(context.Background(), "weather", settings); err == nil {
		t.Fatal("expected second Add with the same name to fail")
	}
}

func TestRegistry_Remove_DeletesEntry(t *testing.T) {
	r := newTestRegistry(t)
	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: false, Provider: "weather",
	}
	if err := r.Add(context.Background(), "weather", settings); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Remove("weather"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get("weather"); err == nil {
		t.Fatal("expected instance to be gone after Remove")
	}
}

func TestRegistry_SetCurrent_RequiresExistingInstance(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.SetCurrent("ghost"); err == nil {
		t.Fatal("expected SetCurrent to fail for a nonexistent instance")
	}
}

func TestRegistry_AttachWatcher_AddStartsWatchingNewProviderDir(t *testing.T) {
	dataDir := t.TempDir()
	r := NewRegistry(dataDir, zap.NewNop())
	core, logs := observer.New(zap.InfoLevel)
	w, err := watcher.New(dataDir, 10*time.Millisecond, zap.New(core))
	if err != nil {
		t.Fatalf("watcher.New: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	r.AttachWatcher(w)

	settings := &mcpconfig.Settings{
		Name: "weather", Type: "stdio", Command: "python3", Args: []string{"weather.py"},
		Env: map[string]string{}, IsActive: false, Provider: "weather",
	}
	if err := r.Add(context.Background(), "weather", settings); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dir, err := mcpconfig.ProviderDir(dataDir, "weather")
	if err != nil {
		t.Fatalf("ProviderDir: %v", err)
	}
	// Only Add has watched dir so far, so a reported change to its settings
	// file shows Add's wiring really watched it.
	stop := make(chan struct{})
	defer close(stop)
	go w.Run(stop)
	if err := os.WriteFile(filepath.Join(dir, mcpconfig.FileName), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessageSnippet("detected external config change").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected a settings change in the new provider directory to be reported")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// AddProviderDir on an already-watched path is a fsnotify no-op, not an
	// error.
	if err := w.AddProviderDir(dir); err != nil {
		t.Fatalf("expected the provider directory to already be watched after Add, got: %v", err)
	}
}
