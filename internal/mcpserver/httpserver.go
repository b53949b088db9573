package mcpserver

import (
	"encoding/json"
	"net/http"
	"sync"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"

	"github.com/google/uuid"
)

// Streamable HTTP is hand-rolled rather than built on mcp-go's HTTP
// transport: it must reproduce the original's exact pre-initialize gate
// (JSON-RPC code -32002, HTTP 400) and method dispatch shape, which the
// SDK's transport does not expose in this form.

// jsonrpcRequest is the wire shape of an incoming JSON-RPC 2.0 call.
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeNotInitialized = -32002
)

// httpSession tracks whether a streamable-HTTP client has completed
// "initialize" yet; every other method is gated on it.
type httpSession struct {
	mu          sync.Mutex
	initialized bool
}

// HTTPHandler implements the hand-rolled JSON-RPC-over-HTTP transport at a
// single endpoint (conventionally mounted at /mcp).
type HTTPHandler struct {
	server *Server

	mu       sync.Mutex
	sessions map[string]*httpSession
}

// NewHTTPHandler wraps s as a streamable-HTTP endpoint.
func NewHTTPHandler(s *Server) *HTTPHandler {
	return &HTTPHandler{server: s, sessions: make(map[string]*httpSession)}
}

const sessionHeader = "Mcp-Session-Id"

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req jsonrpcRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, nil, codeParseError, "Parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "Invalid Request")
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	session, isNew := h.sessionFor(sessionID)
	if isNew {
		sessionID = uuid.NewString()
	}

	session.mu.Lock()
	initialized := session.initialized
	session.mu.Unlock()

	if req.Method != "initialize" && req.Method != "ping" && !initialized {
		h.writeError(w, http.StatusBadRequest, req.ID, codeNotInitialized, "Session not initialized. Call 'initialize' first.")
		return
	}

	ctx := r.Context()

	switch req.Method {
	case "initialize":
		session.mu.Lock()
		session.initialized = true
		h.mu.Lock()
		h.sessions[sessionID] = session
		h.mu.Unlock()
		session.mu.Unlock()

		w.Header().Set(sessionHeader, sessionID)
		h.writeResult(w, req.ID, map[string]any{
			"protocolVersion": mcpsdk.LATEST_PROTOCOL_VERSION,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "mcprouter", "version": "0.1.0"},
		})

	case "notifications/initialized":
		w.WriteHeader(http.StatusAccepted)

	case "ping":
		h.writeResult(w, req.ID, map[string]any{})

	case "tools/list":
		h.writeResult(w, req.ID, map[string]any{"tools": h.server.Tools()})

	case "tools/call":
		var params mcpsdk.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			h.writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "Invalid params")
			return
		}
		callReq := mcpsdk.CallToolRequest{Params: params}
		// CallTool never returns a non-nil error: router/validation failures
		// come back as an errorResult() payload, same as stdio/SSE's
		// SDK-mediated dispatch would encode them, so every transport shares
		// one failure shape.
		res, _ := h.server.CallTool(ctx, callReq)
		h.writeResult(w, req.ID, res)

	case "resources/list":
		h.writeResult(w, req.ID, map[string]any{"resources": []any{}})

	case "prompts/list":
		h.writeResult(w, req.ID, map[string]any{"prompts": []any{}})

	default:
		h.writeError(w, http.StatusBadRequest, req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (h *HTTPHandler) sessionFor(id string) (*httpSession, bool) {
	if id == "" {
		return &httpSession{}, true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s, false
	}
	s := &httpSession{}
	h.sessions[id] = s
	return s, false
}

func (h *HTTPHandler) writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonrpcResponse{JSONRPC: "2.0", ID: id, Error: &jsonrpcError{Code: code, Message: message}})
}
