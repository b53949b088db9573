// Package router implements the thin semantic layer (C6) that the server
// façade's meta-tools dispatch to: select an instance, list instances, ask
// for help, call a tool on the selected (or a named) instance, and manage
// instances (add/remove/enable/disable).
//
// The management operations speak a single, deliberately minimal response
// vocabulary: "Done" on success, "Error: <message>" on failure. This
// mirrors how the original router reports these operations end to end, and
// the admin HTTP layer reuses the same two strings rather than inventing a
// second vocabulary.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mcprouter/mcprouter/internal/mcp"
	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/routererr"
)

// Router wraps a Registry with the router-level operations that the server
// façade and the admin API both dispatch to.
type Router struct {
	registry *mcp.Registry
}

// New creates a Router over an already-populated Registry.
func New(registry *mcp.Registry) *Router {
	return &Router{registry: registry}
}

// InstanceSummary is what List hands back about one
// instance: enough to display, not the full settings.
type InstanceSummary struct {
	Name      string
	Provider  string
	Type      string
	IsActive  bool
	Connected bool
	ToolCount int
}

// Use selects name as the current instance for subsequent Call invocations
// that omit an explicit instance.
func (r *Router) Use(name string) string {
	if err := r.registry.SetCurrent(name); err != nil {
		return errString(err)
	}
	return "Done"
}

// List returns a summary of every configured instance, sorted by name.
func (r *Router) List() []InstanceSummary {
	instances := r.registry.List()
	out := make([]InstanceSummary, 0, len(instances))
	for _, inst := range instances {
		summary := InstanceSummary{
			Name:     inst.Settings.Name,
			Provider: inst.Settings.Provider,
			Type:     inst.Settings.Type,
			IsActive: inst.Settings.IsActive,
		}
		if inst.Session != nil {
			summary.Connected = inst.Session.State() == mcp.StateConnected
			summary.ToolCount = len(inst.Session.Tools())
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Help describes the tools exposed by name, or by the current instance if
// name is empty.
func (r *Router) Help(name string) ([]mcp.ToolInfo, error) {
	resolved, err := r.resolveInstance(name)
	if err != nil {
		return nil, err
	}
	inst, err := r.registry.Get(resolved)
	if err != nil {
		return nil, err
	}
	if inst.Session == nil {
		return nil, routererr.Transport("instance %q is not connected", resolved)
	}
	return inst.Session.Tools(), nil
}

// Call invokes tool on the named instance (or the current instance if name
// is empty) and returns its text result.
func (r *Router) Call(ctx context.Context, name, tool string, args map[string]any) (string, error) {
	resolved, err := r.resolveInstance(name)
	if err != nil {
		return "", err
	}
	inst, err := r.registry.Get(resolved)
	if err != nil {
		return "", err
	}
	if !inst.Settings.IsActive {
		return "", routererr.Configuration("instance %q is disabled", resolved)
	}
	if inst.Session == nil || inst.Session.State() != mcp.StateConnected {
		return "", routererr.Configuration("instance %q is not connected", resolved)
	}
	if !inst.Session.HasTool(tool) {
		return "", routererr.ToolNotFound(tool, resolved)
	}
	return inst.Session.CallTool(ctx, tool, args)
}

// GetCurrentInstance returns the name most recently selected by Use, if any.
func (r *Router) GetCurrentInstance() (string, bool) {
	return r.registry.Current()
}

// Add validates, persists and connects a new instance. Returns "Done" or
// "Error: <message>".
func (r *Router) Add(ctx context.Context, providerName string, settings *mcpconfig.Settings) string {
	if err := r.registry.Add(ctx, providerName, settings); err != nil {
		return errString(err)
	}
	return "Done"
}

// Remove disconnects and deletes an instance. Returns "Done" or
// "Error: <message>".
func (r *Router) Remove(name string) string {
	if err := r.registry.Remove(name); err != nil {
		return errString(err)
	}
	return "Done"
}

// Enable marks an instance active and connects it. Returns "Done" or
// "Error: <message>".
func (r *Router) Enable(ctx context.Context, name string) string {
	if err := r.registry.Enable(ctx, name); err != nil {
		return errString(err)
	}
	return "Done"
}

// Disable marks an instance inactive without disconnecting it. Returns
// "Done" or "Error: <message>".
func (r *Router) Disable(name string) string {
	if err := r.registry.Disable(name); err != nil {
		return errString(err)
	}
	return "Done"
}

func (r *Router) resolveInstance(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	current, ok := r.registry.Current()
	if !ok {
		return "", routererr.Validation("no instance selected; call mcp.router.use first")
	}
	return current, nil
}

func errString(err error) string {
	return fmt.Sprintf("Error: %s", strings.TrimSpace(err.Error()))
}
