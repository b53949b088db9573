package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/routererr"
	"github.com/mcprouter/mcprouter/internal/transport"
	"github.com/mcprouter/mcprouter/internal/validate"
	"github.com/mcprouter/mcprouter/internal/watcher"
)

// Instance is one configured provider: its normalized settings plus the
// session that talks to it (nil until first connected).
type Instance struct {
	Settings *mcpconfig.Settings
	Session  *ClientSession
}

// Registry is the single source of truth for which instances exist and
// which are connected (C3 in the design). State changes are guarded by mu;
// network I/O always happens outside the lock so a hung server can't block
// unrelated registry operations.
type Registry struct {
	dataDir string
	log     *zap.Logger
	watcher *watcher.Watcher // optional; set via AttachWatcher

	mu        sync.RWMutex
	instances map[string]*Instance
	current   string // name of the instance most recently selected by "use"
}

// NewRegistry creates an empty registry rooted at dataDir (one subdirectory
// per provider, each holding an mcp_settings.json).
func NewRegistry(dataDir string, log *zap.Logger) *Registry {
	return &Registry{
		dataDir:   dataDir,
		log:       log,
		instances: make(map[string]*Instance),
	}
}

// AttachWatcher wires w into the registry so a newly added provider's
// directory is watched immediately instead of only after the next restart.
// Call once, after startup has already added every existing provider's
// directory to w.
func (r *Registry) AttachWatcher(w *watcher.Watcher) {
	r.watcher = w
}

// LoadAll discovers every provider under dataDir and connects those marked
// active. Connection failures are collected and returned but do not prevent
// other providers from loading — this is a best-effort startup barrier, not
// an all-or-nothing one.
func (r *Registry) LoadAll(ctx context.Context) (connected int, errs []error) {
	providers, err := mcpconfig.DiscoverProviders(r.dataDir)
	if err != nil {
		return 0, []error{err}
	}

	type loadResult struct {
		name     string
		settings *mcpconfig.Settings
		session  *ClientSession
		err      error
	}
	results := make([]loadResult, 0, len(providers))

	for _, provider := range providers {
		dir, err := mcpconfig.ProviderDir(r.dataDir, provider)
		if err != nil {
			results = append(results, loadResult{name: provider, err: err})
			continue
		}
		settings, err := mcpconfig.LoadProviderConfig(dir, provider)
		if err != nil {
			results = append(results, loadResult{name: provider, err: err})
			continue
		}

		if !settings.IsActive {
			results = append(results, loadResult{name: settings.Name, settings: settings})
			continue
		}

		session := NewClientSession(settings.Name, settingsToTransport(settings), r.log)
		if err := session.Connect(ctx); err != nil {
			r.log.Warn("failed to connect instance at startup", zap.String("instance", settings.Name), zap.Error(err))
			results = append(results, loadResult{name: settings.Name, settings: settings, err: err})
			continue
		}
		results = append(results, loadResult{name: settings.Name, settings: settings, session: session})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		if res.settings == nil {
			errs = append(errs, res.err)
			continue
		}
		r.instances[res.name] = &Instance{Settings: res.settings, Session: res.session}
		if res.session != nil {
			connected++
		} else if res.err != nil {
			errs = append(errs, fmt.Errorf("instance %q: %w", res.name, res.err))
		}
	}
	return connected, errs
}

func settingsToTransport(s *mcpconfig.Settings) transport.Config {
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	cfg := transport.Config{Transport: s.Type, Command: s.Command, Args: s.Args, Env: env}
	if s.Type == "sse" || s.Type == "http" {
		if u, ok := s.Extra.Get("url"); ok {
			var url string
			if unmarshalErr := jsonUnmarshalString(u, &url); unmarshalErr == nil {
				cfg.URL = url
			}
		}
	}
	return cfg
}

// Get returns the named instance, or an error if it doesn't exist.
func (r *Registry) Get(name string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[name]
	if !ok {
		return nil, routererr.InstanceNotFound(name)
	}
	return inst, nil
}

// List returns every registered instance, in no particular order; sorting is
// left to the caller.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

// Current returns the name most recently selected by "use", and whether one
// has been selected at all.
func (r *Registry) Current() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.current != ""
}

// SetCurrent records name as the currently selected instance.
func (r *Registry) SetCurrent(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[name]; !ok {
		return routererr.InstanceNotFound(name)
	}
	r.current = name
	return nil
}

// Add validates and persists a new provider's settings, connects it if
// active, and registers it in the registry. Duplicate names are rejected —
// the config store never silently overwrites an existing provider.
func (r *Registry) Add(ctx context.Context, provider string, settings *mcpconfig.Settings) error {
	if err := validate.ProviderName(provider); err != nil {
		return err
	}

	r.mu.RLock()
	_, exists := r.instances[settings.Name]
	r.mu.RUnlock()
	if exists {
		return routererr.Validation("Instance '%s' already exists", settings.Name)
	}

	dir, err := mcpconfig.ProviderDir(r.dataDir, provider)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(filepath.Join(dir, mcpconfig.FileName)); statErr == nil {
		return routererr.Validation("provider %q already has a settings file", provider)
	}

	if settings.Type == "stdio" {
		if scriptPath, ok := findScriptArgFromSettings(settings); ok {
			if findings, scanErr := scanScript(scriptPath); scanErr == nil {
				logFindings(r.log, settings.Name, findings)
				if hasCritical(findings) {
					return routererr.Security("add blocked: critical security findings in %s", scriptPath)
				}
			} else {
				r.log.Warn("security scan failed, proceeding anyway", zap.String("instance", settings.Name), zap.Error(scanErr))
			}
		}
	}

	if err := mcpconfig.SaveProviderConfig(dir, settings); err != nil {
		return err
	}

	if r.watcher != nil {
		if err := r.watcher.AddProviderDir(dir); err != nil {
			r.log.Warn("failed to watch new provider directory", zap.String("instance", settings.Name), zap.Error(err))
		}
	}

	inst := &Instance{Settings: settings}
	if settings.IsActive {
		session := NewClientSession(settings.Name, settingsToTransport(settings), r.log)
		if err := session.Connect(ctx); err != nil {
			r.log.Warn("added instance failed to connect", zap.String("instance", settings.Name), zap.Error(err))
		} else {
			inst.Session = session
		}
	}

	r.mu.Lock()
	r.instances[settings.Name] = inst
	r.mu.Unlock()
	return nil
}

// Remove disconnects and deletes a provider entirely: its config file, its
// directory, and its registry entry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	inst, ok := r.instances[name]
	if !ok {
		r.mu.Unlock()
		return routererr.InstanceNotFound(name)
	}
	delete(r.instances, name)
	if r.current == name {
		r.current = ""
	}
	r.mu.Unlock()

	if inst.Session != nil {
		if err := inst.Session.Disconnect(); err != nil {
			r.log.Warn("error closing session during remove", zap.String("instance", name), zap.Error(err))
		}
	}

	dir, err := mcpconfig.ProviderDir(r.dataDir, inst.Settings.Provider)
	if err != nil {
		return err
	}
	return mcpconfig.RemoveProviderConfig(dir)
}

// Enable marks an instance active and connects it if it isn't already.
func (r *Registry) Enable(ctx context.Context, name string) error {
	r.mu.Lock()
	inst, ok := r.instances[name]
	r.mu.Unlock()
	if !ok {
		return routererr.InstanceNotFound(name)
	}

	inst.Settings.IsActive = true
	dir, err := mcpconfig.ProviderDir(r.dataDir, inst.Settings.Provider)
	if err != nil {
		return err
	}
	if err := mcpconfig.SaveProviderConfig(dir, inst.Settings); err != nil {
		return err
	}

	r.mu.Lock()
	connected := inst.Session != nil && inst.Session.State() == StateConnected
	r.mu.Unlock()
	if connected {
		return nil
	}

	session := NewClientSession(name, settingsToTransport(inst.Settings), r.log)
	if err := session.Connect(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	inst.Session = session
	r.mu.Unlock()
	return nil
}

// Disable marks an instance inactive. It deliberately does NOT disconnect
// the live session — disable only stops future routing to the instance,
// matching the original implementation's disable_instance behavior.
func (r *Registry) Disable(name string) error {
	r.mu.Lock()
	inst, ok := r.instances[name]
	r.mu.Unlock()
	if !ok {
		return routererr.InstanceNotFound(name)
	}

	inst.Settings.IsActive = false
	dir, err := mcpconfig.ProviderDir(r.dataDir, inst.Settings.Provider)
	if err != nil {
		return err
	}
	return mcpconfig.SaveProviderConfig(dir, inst.Settings)
}

// CloseAll disconnects every connected session. Safe to call multiple times.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*ClientSession, 0, len(r.instances))
	for _, inst := range r.instances {
		if inst.Session != nil {
			sessions = append(sessions, inst.Session)
		}
	}
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Disconnect(); err != nil {
			r.log.Warn("error closing session during shutdown", zap.String("instance", s.Name()), zap.Error(err))
		}
	}
}
