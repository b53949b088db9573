// Package mcp implements the router's view of a single upstream MCP server:
// a connection lifecycle (C2's ClientSession) and the registry that tracks
// every configured instance (C3).
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	sdk_client "github.com/mark3labs/mcp-go/client"
	sdk_mcp "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/routererr"
	"github.com/mcprouter/mcprouter/internal/transport"
)

// State is a ClientSession's connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// DefaultTimeout bounds every connect/list/call round-trip unless the caller
// supplies its own deadline via ctx.
const DefaultTimeout = 30 * time.Second

// ToolInfo is one tool's metadata as advertised by list_tools.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ClientSession owns the connection to a single upstream MCP server and
// serializes request/response pairing on it: mcp-go clients multiplex
// concurrent calls internally, but the router still guards state transitions
// (connect racing with close, etc.) with a single mutex per session.
type ClientSession struct {
	name string
	cfg  transport.Config
	log  *zap.Logger

	mu    sync.Mutex
	state State
	inner sdk_client.MCPClient
	tools []ToolInfo
	err   error
}

// NewClientSession creates an unconnected session for the named instance.
// log receives a stdio instance's drained child stderr.
func NewClientSession(name string, cfg transport.Config, log *zap.Logger) *ClientSession {
	return &ClientSession{name: name, cfg: cfg, log: log, state: StateDisconnected}
}

// Name returns the instance name this session was created for.
func (s *ClientSession) Name() string { return s.name }

// State returns the session's current lifecycle state.
func (s *ClientSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the transport and performs the MCP initialize handshake,
// then eagerly lists tools so Tools() never needs a network round trip
// after a successful Connect. A context without a deadline gets
// DefaultTimeout applied.
func (s *ClientSession) Connect(ctx context.Context) error {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	inner, err := transport.Dial(ctx, s.cfg, s.log)
	if err != nil {
		s.setError(err)
		return err
	}

	_, err = inner.Initialize(ctx, sdk_mcp.InitializeRequest{
		Params: sdk_mcp.InitializeParams{
			ProtocolVersion: sdk_mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: sdk_mcp.Implementation{
				Name:    "mcprouter",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		_ = inner.Close()
		wrapped := routererr.Transport("initialize %q: %v", s.name, err)
		s.setError(wrapped)
		return wrapped
	}

	result, err := inner.ListTools(ctx, sdk_mcp.ListToolsRequest{})
	if err != nil {
		_ = inner.Close()
		wrapped := routererr.Transport("list tools %q: %v", s.name, err)
		s.setError(wrapped)
		return wrapped
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			schema = json.RawMessage("{}")
		}
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	s.mu.Lock()
	s.inner = inner
	s.tools = tools
	s.state = StateConnected
	s.err = nil
	s.mu.Unlock()
	return nil
}

func (s *ClientSession) setError(err error) {
	s.mu.Lock()
	s.state = StateError
	s.err = err
	s.mu.Unlock()
}

// Tools returns the tool list discovered at Connect time.
func (s *ClientSession) Tools() []ToolInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolInfo, len(s.tools))
	copy(out, s.tools)
	return out
}

// HasTool reports whether name was advertised by the server.
func (s *ClientSession) HasTool(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// CallTool invokes a tool and returns its concatenated text content. If the
// server reports IsError, the text is wrapped in a *routererr.Error with
// CodeInternal rather than returned as a bare Go error, so callers can
// forward the message verbatim.
func (s *ClientSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	s.mu.Lock()
	inner := s.inner
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || inner == nil {
		return "", routererr.Transport("instance %q is not connected", s.name)
	}

	req := sdk_mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := inner.CallTool(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", routererr.Timeout(DefaultTimeout.Seconds())
		}
		return "", routererr.Transport("call tool %q on %q: %v", name, s.name, err)
	}

	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(sdk_mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")

	if result.IsError {
		return "", routererr.Internal("tool %q returned an error: %s", name, text)
	}
	return text, nil
}

// Disconnect closes the underlying transport. It is a no-op if already
// disconnected. Disconnect never needs to be called from the admin-facing
// disable operation (disable only flips IsActive — see registry.go); it is
// used for remove and for shutdown.
func (s *ClientSession) Disconnect() error {
	s.mu.Lock()
	inner := s.inner
	s.inner = nil
	s.tools = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if inner == nil {
		return nil
	}
	if err := inner.Close(); err != nil {
		return fmt.Errorf("mcp: close %q: %w", s.name, err)
	}
	return nil
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
