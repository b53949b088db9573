// Package mcpconfig reads and writes a single provider's mcp_settings.json
// file: the on-disk config store (C4 in the design). Two shapes are accepted
// on read ({"mcpServers": {"<key>": {...}}} or a flat object); writes always
// emit the canonical shape with a fixed field order followed by any extra
// keys in their original insertion order.
package mcpconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mcprouter/mcprouter/internal/routererr"
	"github.com/mcprouter/mcprouter/internal/validate"
)

// maxFileSize bounds the settings file the same way the router bounds its
// global config file: a malformed or hostile file should fail fast rather
// than be read into memory wholesale.
const maxFileSize = 10 << 20 // 10 MiB

// FileName is the name every provider directory's settings file must have.
const FileName = "mcp_settings.json"

// fixedFields lists the canonical output field order. Anything else present
// on read is carried through in Extra, in original insertion order.
var fixedFields = []string{"name", "type", "command", "args", "env", "isActive", "provider"}

// Settings is one provider's normalized instance configuration.
type Settings struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Command  string            `json:"command"`
	Args     []string          `json:"args"`
	Env      map[string]string `json:"env"`
	IsActive bool              `json:"isActive"`
	Provider string            `json:"provider"`

	// Extra carries any fields beyond the canonical set, preserving the
	// order they were read in so round-tripping a hand-edited file doesn't
	// shuffle it.
	Extra *orderedmap.OrderedMap[string, json.RawMessage]
}

// LoadProviderConfig reads and normalizes providerDir/mcp_settings.json.
// providerName is the provider directory's base name, used to fill in
// Provider and, when absent, Name.
func LoadProviderConfig(providerDir, providerName string) (*Settings, error) {
	path := filepath.Join(providerDir, FileName)

	info, err := os.Stat(path)
	if err != nil {
		return nil, routererr.Configuration("failed to stat %s: %v", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, routererr.Configuration("%s exceeds maximum size of %d bytes", path, maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, routererr.Configuration("failed to read %s: %v", path, err)
	}

	raw := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, routererr.Configuration("failed to parse %s: %v", path, err)
	}

	// {"mcpServers": {"<key>": {...}}} shape: exactly one entry, whose
	// fields are the actual settings and whose key seeds the name.
	if serversRaw, ok := raw.Get("mcpServers"); ok {
		servers := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(serversRaw, servers); err != nil {
			return nil, routererr.Configuration("failed to parse mcpServers in %s: %v", path, err)
		}
		if servers.Len() != 1 {
			return nil, routererr.Configuration("mcpServers in %s must contain exactly one entry, found %d", path, servers.Len())
		}
		pair := servers.Oldest()
		inner := orderedmap.New[string, json.RawMessage]()
		if err := json.Unmarshal(pair.Value, inner); err != nil {
			return nil, routererr.Configuration("failed to parse mcpServers entry in %s: %v", path, err)
		}
		if _, hasName := inner.Get("name"); !hasName {
			nameJSON, _ := json.Marshal(pair.Key)
			inner.Set("name", json.RawMessage(nameJSON))
		}
		raw = inner
	}

	return normalize(raw, providerName)
}

// normalize applies the on-disk → canonical field mapping rules: the
// transport/type synonym, stdio/isActive defaults, and provider/name
// imputation from the directory name.
func normalize(raw *orderedmap.OrderedMap[string, json.RawMessage], providerName string) (*Settings, error) {
	if _, hasType := raw.Get("type"); !hasType {
		if transportRaw, hasTransport := raw.Get("transport"); hasTransport {
			raw.Set("type", transportRaw)
			raw.Delete("transport")
		} else {
			defJSON, _ := json.Marshal("stdio")
			raw.Set("type", json.RawMessage(defJSON))
		}
	}

	if _, hasActive := raw.Get("isActive"); !hasActive {
		defJSON, _ := json.Marshal(true)
		raw.Set("isActive", json.RawMessage(defJSON))
	}

	providerJSON, _ := json.Marshal(providerName)
	raw.Set("provider", json.RawMessage(providerJSON))

	if _, hasName := raw.Get("name"); !hasName {
		raw.Set("name", json.RawMessage(providerJSON))
	}

	s := &Settings{Extra: orderedmap.New[string, json.RawMessage]()}

	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		switch pair.Key {
		case "name":
			if err := json.Unmarshal(pair.Value, &s.Name); err != nil {
				return nil, routererr.Configuration("invalid name field: %v", err)
			}
		case "type":
			if err := json.Unmarshal(pair.Value, &s.Type); err != nil {
				return nil, routererr.Configuration("invalid type field: %v", err)
			}
		case "command":
			if err := json.Unmarshal(pair.Value, &s.Command); err != nil {
				return nil, routererr.Configuration("invalid command field: %v", err)
			}
		case "args":
			if err := json.Unmarshal(pair.Value, &s.Args); err != nil {
				return nil, routererr.Configuration("invalid args field: %v", err)
			}
		case "env":
			if err := json.Unmarshal(pair.Value, &s.Env); err != nil {
				return nil, routererr.Configuration("invalid env field: %v", err)
			}
		case "isActive":
			if err := json.Unmarshal(pair.Value, &s.IsActive); err != nil {
				return nil, routererr.Configuration("invalid isActive field: %v", err)
			}
		case "provider":
			if err := json.Unmarshal(pair.Value, &s.Provider); err != nil {
				return nil, routererr.Configuration("invalid provider field: %v", err)
			}
		default:
			s.Extra.Set(pair.Key, pair.Value)
		}
	}

	if err := validateSettings(s); err != nil {
		return nil, err
	}
	return s, nil
}

func validateSettings(s *Settings) error {
	if err := validate.InstanceName(s.Name); err != nil {
		return err
	}
	if err := validate.ProviderName(s.Provider); err != nil {
		return err
	}
	if err := validate.Transport(s.Type); err != nil {
		return err
	}
	// sse/http instances are reached by URL, so an empty command is accepted
	// for them; stdio always needs one.
	if s.Type == "stdio" || s.Command != "" {
		if err := validate.Command(s.Command); err != nil {
			return err
		}
	}
	if err := validate.Args(s.Args); err != nil {
		return err
	}
	if err := validate.Env(s.Env); err != nil {
		return err
	}
	return nil
}

// SaveProviderConfig writes s to providerDir/mcp_settings.json in the
// canonical field order, atomically (write to a temp file, then rename).
func SaveProviderConfig(providerDir string, s *Settings) error {
	if err := validateSettings(s); err != nil {
		return err
	}

	out := orderedmap.New[string, json.RawMessage]()
	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out.Set(key, json.RawMessage(b))
		return nil
	}
	if err := set("name", s.Name); err != nil {
		return routererr.Internal("failed to marshal name: %v", err)
	}
	if err := set("type", s.Type); err != nil {
		return routererr.Internal("failed to marshal type: %v", err)
	}
	if err := set("command", s.Command); err != nil {
		return routererr.Internal("failed to marshal command: %v", err)
	}
	if err := set("args", s.Args); err != nil {
		return routererr.Internal("failed to marshal args: %v", err)
	}
	if err := set("env", s.Env); err != nil {
		return routererr.Internal("failed to marshal env: %v", err)
	}
	if err := set("isActive", s.IsActive); err != nil {
		return routererr.Internal("failed to marshal isActive: %v", err)
	}
	if err := set("provider", s.Provider); err != nil {
		return routererr.Internal("failed to marshal provider: %v", err)
	}
	if s.Extra != nil {
		for pair := s.Extra.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return routererr.Internal("failed to marshal settings: %v", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(providerDir, 0o755); err != nil {
		return routererr.Configuration("failed to create provider directory %s: %v", providerDir, err)
	}

	path := filepath.Join(providerDir, FileName)
	tmp, err := os.CreateTemp(providerDir, ".mcp_settings-*.tmp")
	if err != nil {
		return routererr.Configuration("failed to create temp file in %s: %v", providerDir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return routererr.Configuration("failed to write %s: %v", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return routererr.Configuration("failed to close %s: %v", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return routererr.Configuration("failed to rename %s to %s: %v", tmpPath, path, err)
	}
	return nil
}

// RemoveProviderConfig deletes a provider's whole directory (config file
// plus any sibling files such as a stdio script), matching the original's
// remove_instance behavior of dropping the entire provider directory.
func RemoveProviderConfig(providerDir string) error {
	if err := os.RemoveAll(providerDir); err != nil {
		return routererr.Configuration("failed to remove provider directory %s: %v", providerDir, err)
	}
	return nil
}

// DiscoverProviders lists provider directory names under dataDir that
// contain an mcp_settings.json file, mirroring the original's data/*/
// glob-based discovery.
func DiscoverProviders(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, routererr.Configuration("failed to read data directory %s: %v", dataDir, err)
	}

	var providers []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		settingsPath := filepath.Join(dataDir, e.Name(), FileName)
		if _, err := os.Stat(settingsPath); err == nil {
			providers = append(providers, e.Name())
		}
	}
	return providers, nil
}

// ProviderDir computes a provider's directory path within dataDir, guarding
// against path traversal via the provider name.
func ProviderDir(dataDir, providerName string) (string, error) {
	if err := validate.ProviderName(providerName); err != nil {
		return "", err
	}
	resolved, err := validate.PathWithinRoot(dataDir, providerName)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
