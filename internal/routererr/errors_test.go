package routererr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsRouterError_Direct(t *testing.T) {
	err := InstanceNotFound("redis")
	re := AsRouterError(err)
	if re.Code != CodeInstanceNF {
		t.Fatalf("got code %s, want %s", re.Code, CodeInstanceNF)
	}
}

func TestAsRouterError_Wrapped(t *testing.T) {
	base := ToolNotFound("frobnicate", "redis")
	wrapped := fmt.Errorf("dispatch failed: %w", base)
	re := AsRouterError(wrapped)
	if re.Code != CodeToolNF {
		t.Fatalf("got code %s, want %s", re.Code, CodeToolNF)
	}
}

func TestAsRouterError_Foreign(t *testing.T) {
	re := AsRouterError(errors.New("boom"))
	if re.Code != CodeInternal {
		t.Fatalf("got code %s, want %s", re.Code, CodeInternal)
	}
}

func TestErrorIs(t *testing.T) {
	err := Configuration("instance '%s' not connected", "redis")
	if !errors.Is(err, New(CodeConfig, "")) {
		t.Fatal("expected errors.Is to match on code")
	}
	if errors.Is(err, New(CodeTimeout, "")) {
		t.Fatal("did not expect match on a different code")
	}
}

func TestToDict(t *testing.T) {
	err := ToolNotFound("x", "y")
	d := err.ToDict()
	if d["code"] != string(CodeToolNF) {
		t.Fatalf("unexpected code in dict: %v", d)
	}
	if d["error"] == "" {
		t.Fatal("expected non-empty error message")
	}
}
