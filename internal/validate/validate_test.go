package validate

import "testing"

func TestProviderName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"redis_cache-1", false},
		{"", true},
		{"bad name", true},
		{"bad;name", true},
	}
	for _, c := range cases {
		err := ProviderName(c.name)
		if (err != nil) != c.wantErr {
			t.Errorf("ProviderName(%q) err=%v, wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestInstanceName_AllowsUnicode(t *testing.T) {
	if err := InstanceName("napcat_文档"); err != nil {
		t.Fatalf("expected unicode instance name to validate, got %v", err)
	}
}

func TestCommand_RejectsMetacharacters(t *testing.T) {
	for _, bad := range []string{"python3; rm -rf /", "node `whoami`", "sh -c $(id)"} {
		if err := Command(bad); err == nil {
			t.Errorf("expected Command(%q) to fail", bad)
		}
	}
	if err := Command("python3"); err != nil {
		t.Fatalf("expected plain command to validate, got %v", err)
	}
}

func TestArgs_LengthAndCount(t *testing.T) {
	if err := Args(make([]string, maxArgs+1)); err == nil {
		t.Fatal("expected too many args to fail")
	}
	if err := Args([]string{"--flag", "value"}); err != nil {
		t.Fatalf("expected ok args to validate, got %v", err)
	}
}

func TestEnv_RejectsBadKey(t *testing.T) {
	if err := Env(map[string]string{"1BAD": "x"}); err == nil {
		t.Fatal("expected bad env key to fail")
	}
	if err := Env(map[string]string{"GOOD_KEY": "x"}); err != nil {
		t.Fatalf("expected good env key to validate, got %v", err)
	}
}

func TestTransport(t *testing.T) {
	for _, ok := range []string{"stdio", "sse", "http"} {
		if err := Transport(ok); err != nil {
			t.Errorf("expected %q to validate, got %v", ok, err)
		}
	}
	if err := Transport("carrier-pigeon"); err == nil {
		t.Fatal("expected unsupported transport to fail")
	}
}

func TestPathWithinRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := PathWithinRoot(root, "provider/mcp_settings.json"); err != nil {
		t.Fatalf("expected path within root to validate, got %v", err)
	}
	if _, err := PathWithinRoot(root, "../../etc/passwd"); err == nil {
		t.Fatal("expected traversal outside root to fail")
	}
}

func TestToolName(t *testing.T) {
	if err := ToolName("fetch_page"); err != nil {
		t.Fatalf("expected ok tool name to validate, got %v", err)
	}
	for _, bad := range []string{"", "../etc", "a;b"} {
		if err := ToolName(bad); err == nil {
			t.Errorf("expected ToolName(%q) to fail", bad)
		}
	}
}
