package globalconfig

import (
	"path/filepath"
	"testing"
)

func TestLoad_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("expected default api.port 8000, got %d", cfg.API.Port)
	}
	if cfg.Server.TransportType != "stdio" {
		t.Errorf("expected default transport_type stdio, got %q", cfg.Server.TransportType)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("expected the just-saved default file to be loadable, got %v", err)
	}
}

func TestLoad_ParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.API.Port = 9001
	cfg.Security.BearerToken = "secret-token"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.API.Port != 9001 {
		t.Errorf("expected port 9001, got %d", loaded.API.Port)
	}
	if loaded.Security.BearerToken != "secret-token" {
		t.Errorf("expected bearer token to round-trip, got %q", loaded.Security.BearerToken)
	}
}

func TestGet_DotNotation(t *testing.T) {
	cfg := Default()
	v, ok := Get(cfg, "api.port")
	if !ok {
		t.Fatal("expected api.port to resolve")
	}
	if v.(float64) != 8000 {
		t.Errorf("expected 8000, got %v", v)
	}

	if _, ok := Get(cfg, "api.nonexistent"); ok {
		t.Fatal("expected unknown key to not resolve")
	}
}
