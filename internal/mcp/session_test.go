package mcp

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/transport"
)

func TestNewClientSession_StartsDisconnected(t *testing.T) {
	s := NewClientSession("weather", transport.Config{Transport: "stdio", Command: "python3"}, zap.NewNop())
	if s.State() != StateDisconnected {
		t.Fatalf("expected initial state disconnected, got %v", s.State())
	}
	if s.Name() != "weather" {
		t.Fatalf("expected name weather, got %q", s.Name())
	}
}

func TestCallTool_RejectsWhenNotConnected(t *testing.T) {
	s := NewClientSession("weather", transport.Config{Transport: "stdio", Command: "python3"}, zap.NewNop())
	if _, err := s.CallTool(context.Background(), "get_forecast", nil); err == nil {
		t.Fatal("expected an error calling a tool on a disconnected session")
	}
}

func TestHasTool_EmptyBeforeConnect(t *testing.T) {
	s := NewClientSession("weather", transport.Config{Transport: "stdio", Command: "python3"}, zap.NewNop())
	if s.HasTool("anything") {
		t.Fatal("expected no tools before Connect")
	}
	if len(s.Tools()) != 0 {
		t.Fatal("expected empty tool list before Connect")
	}
}

func TestDisconnect_NoopWhenNeverConnected(t *testing.T) {
	s := NewClientSession("weather", transport.Config{Transport: "stdio", Command: "python3"}, zap.NewNop())
	if err := s.Disconnect(); err != nil {
		t.Fatalf("expected Disconnect on a never-connected session to be a no-op, got %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("expected state disconnected after Disconnect, got %v", s.State())
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:     "connected",
		StateError:        "error",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
