package admin

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/router"
	"github.com/mcprouter/mcprouter/internal/routererr"
)

// Routes builds the /api-prefixed mux: instance CRUD, tool discovery, ad
// hoc tool calls, and the static config snapshot, matching the original's
// routes.py one for one.
func Routes(r *router.Router) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/instances", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, r.List())
		case http.MethodPost:
			handleAddInstance(w, req, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/instances/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/api/instances/")
		if rest == "" {
			http.NotFound(w, req)
			return
		}

		switch {
		case strings.HasSuffix(rest, "/enable") && req.Method == http.MethodPost:
			name := strings.TrimSuffix(rest, "/enable")
			writeOutcome(w, r.Enable(req.Context(), name))
		case strings.HasSuffix(rest, "/disable") && req.Method == http.MethodPost:
			name := strings.TrimSuffix(rest, "/disable")
			writeOutcome(w, r.Disable(name))
		case req.Method == http.MethodGet:
			summaries := r.List()
			for _, s := range summaries {
				if s.Name == rest {
					writeJSON(w, http.StatusOK, s)
					return
				}
			}
			http.NotFound(w, req)
		case req.Method == http.MethodDelete:
			writeOutcome(w, r.Remove(rest))
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/tools", func(w http.ResponseWriter, req *http.Request) {
		summaries := r.List()
		writeJSON(w, http.StatusOK, summaries)
	})

	mux.HandleFunc("/api/tools/", func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(req.URL.Path, "/api/tools/")
		tools, err := r.Help(name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, tools)
	})

	mux.HandleFunc("/api/call", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handleCall(w, req, r)
	})

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, req *http.Request) {
		current, _ := r.GetCurrentInstance()
		writeJSON(w, http.StatusOK, map[string]any{
			"instances":        r.List(),
			"current_instance": current,
		})
	})

	return mux
}

type addInstanceRequest struct {
	Provider string            `json:"provider"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Command  string            `json:"command"`
	Args     []string          `json:"args"`
	Env      map[string]string `json:"env"`
	IsActive *bool             `json:"isActive"`
}

func handleAddInstance(w http.ResponseWriter, req *http.Request, r *router.Router) {
	var body addInstanceRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}
	settings := &mcpconfig.Settings{
		Name:     body.Name,
		Type:     body.Type,
		Command:  body.Command,
		Args:     body.Args,
		Env:      body.Env,
		IsActive: isActive,
		Provider: body.Provider,
	}

	writeOutcome(w, r.Add(req.Context(), body.Provider, settings))
}

type callRequest struct {
	Instance string         `json:"instance"`
	Tool     string         `json:"tool"`
	Params   map[string]any `json:"params"`
}

func handleCall(w http.ResponseWriter, req *http.Request, r *router.Router) {
	var body callRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := validateToolName(body.Tool); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := r.Call(req.Context(), body.Instance, body.Tool, body.Params)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

// validateToolName rejects the same dangerous characters the original
// checks directly in the route layer, ahead of any instance lookup.
func validateToolName(name string) error {
	for _, c := range []string{"/", "\\", "..", ";", "|", "&", "$", "`"} {
		if strings.Contains(name, c) {
			return routererr.Validation("tool name contains disallowed character: %s", c)
		}
	}
	return nil
}

// writeOutcome wraps the router's "Done"/"Error: ..." vocabulary in a JSON
// envelope rather than inventing a second one.
func writeOutcome(w http.ResponseWriter, outcome string) {
	if strings.HasPrefix(outcome, "Error:") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "detail": outcome})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "detail": outcome})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
