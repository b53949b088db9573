// Package globalconfig loads and saves the router's single config.json file:
// the static settings controlling the admin API, the server façade, the
// upstream client defaults, security, logging and the file watcher. It is
// grounded on the original's core config manager: dot-notation get, a
// size ceiling, and a baked-in default shape used whenever the file is
// missing or empty.
package globalconfig

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/mcprouter/mcprouter/internal/routererr"
)

const maxFileSize = 10 << 20 // 10 MiB

// APIConfig controls the admin REST/WebSocket surface.
type APIConfig struct {
	Enabled           bool   `json:"enabled"`
	Port              int    `json:"port"`
	Host              string `json:"host"`
	CORSOrigin        string `json:"cors_origin"`
	AutoFindPort      bool   `json:"auto_find_port"`
	EnableRealtimeLog bool   `json:"enable_realtime_logs"`
}

// ServerConfig controls the upstream-facing MCP server façade.
type ServerConfig struct {
	Enabled                  bool   `json:"enabled"`
	TransportType            string `json:"transport_type"`
	AllowInstanceManagement  bool   `json:"allow_instance_management"`
}

// MCPClientConfig is the mcp_client section of config.json. It is loaded but
// not applied to downstream connections, which use mcp.DefaultTimeout.
type MCPClientConfig struct {
	Enabled bool    `json:"enabled"`
	Timeout float64 `json:"timeout"`
}

// SecurityConfig controls the admin API's bearer-token gate.
type SecurityConfig struct {
	BearerToken      string `json:"bearer_token"`
	EnableValidation bool   `json:"enable_validation"`
}

// LoggingConfig controls the zap/lumberjack logging stack.
type LoggingConfig struct {
	Level     string `json:"level"`
	Format    string `json:"format"`
	Directory string `json:"directory"`
}

// WatcherConfig controls the config-file watcher's debounce behavior.
type WatcherConfig struct {
	Enabled       bool    `json:"enabled"`
	WatchPath     string  `json:"watch_path"`
	DebounceDelay float64 `json:"debounce_delay"`
}

// Config is the full config.json document.
type Config struct {
	API       APIConfig       `json:"api"`
	Server    ServerConfig    `json:"server"`
	MCPClient MCPClientConfig `json:"mcp_client"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Watcher   WatcherConfig   `json:"watcher"`
}

// Default returns the baked-in default configuration, matching the
// original's _get_default_config shape field for field.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Enabled:           false,
			Port:              8000,
			Host:              "127.0.0.1",
			CORSOrigin:        "*",
			AutoFindPort:      true,
			EnableRealtimeLog: false,
		},
		Server: ServerConfig{
			Enabled:                 true,
			TransportType:           "stdio",
			AllowInstanceManagement: false,
		},
		MCPClient: MCPClientConfig{
			Enabled: true,
			Timeout: 30,
		},
		Security: SecurityConfig{
			BearerToken:      "",
			EnableValidation: true,
		},
		Logging: LoggingConfig{
			Level:     "INFO",
			Format:    "%(asctime)s - %(name)s - %(levelname)s - %(message)s",
			Directory: "logs",
		},
		Watcher: WatcherConfig{
			Enabled:       true,
			WatchPath:     "data",
			DebounceDelay: 1.0,
		},
	}
}

// Load reads path, falling back to Default (and persisting it) when the
// file is missing or empty. A file larger than maxFileSize is rejected.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if saveErr := Save(path, cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}
	if err != nil {
		return nil, routererr.Configuration("failed to stat %s: %v", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, routererr.Configuration("%s exceeds maximum size of %d bytes", path, maxFileSize)
	}
	if info.Size() == 0 {
		cfg := Default()
		if saveErr := Save(path, cfg); saveErr != nil {
			return nil, saveErr
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, routererr.Configuration("failed to read %s: %v", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, routererr.Configuration("failed to parse %s: %v", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return routererr.Internal("failed to marshal config: %v", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return routererr.Configuration("failed to write %s: %v", path, err)
	}
	return nil
}

// Get resolves a dot-notation key (e.g. "api.port") against cfg's JSON
// representation, matching the original's ConfigManager.get(key, default).
func Get(cfg *Config, key string) (any, bool) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, false
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false
	}

	parts := strings.Split(key, ".")
	var cur any = tree
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
