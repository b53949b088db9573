// Package validate holds the pure, side-effect-free validation rules shared
// by the registry, config store, router and server façade (C8 in the design).
package validate

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mcprouter/mcprouter/internal/routererr"
)

var (
	providerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	instanceNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_-]+$`)
	envKeyPattern        = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// metacharacters that may never appear in a command or argument: these are
// the shell metacharacters that would let a config entry smuggle a second
// command into the child process's invocation.
const shellMetacharacters = ";|&$`\n\r"

const (
	maxNameLen    = 100
	maxCommandLen = 1000
	maxArgLen     = 1000
	maxArgs       = 100
	maxEnvEntries = 100
	maxMetaEntries = 50
)

// ProviderName validates the ASCII-only on-disk provider/directory name.
func ProviderName(name string) error {
	if name == "" {
		return routererr.Validation("Provider name cannot be empty")
	}
	if !providerNamePattern.MatchString(name) {
		return routererr.Validation(
			"Invalid provider name: '%s'. Only alphanumeric characters, underscores, and hyphens are allowed", name)
	}
	if len(name) > maxNameLen {
		return routererr.Validation("Provider name too long (max %d characters)", maxNameLen)
	}
	return nil
}

// InstanceName validates the display/identifier name, which may contain any
// Unicode letters or digits in addition to '_' and '-'.
func InstanceName(name string) error {
	if name == "" {
		return routererr.Validation("Instance name cannot be empty")
	}
	if !instanceNamePattern.MatchString(name) {
		return routererr.Validation(
			"Invalid instance name: '%s'. Only letters, digits, underscores and hyphens are allowed", name)
	}
	if len([]rune(name)) > maxNameLen {
		return routererr.Validation("Instance name too long (max %d characters)", maxNameLen)
	}
	return nil
}

// Command validates the command string: bounded length, free of shell
// metacharacters that would let it smuggle a second command.
func Command(cmd string) error {
	if cmd == "" {
		return routererr.Validation("Command cannot be empty")
	}
	if len(cmd) > maxCommandLen {
		return routererr.Validation("Command too long (max %d characters)", maxCommandLen)
	}
	if strings.ContainsAny(cmd, shellMetacharacters) {
		return routererr.Validation("Command contains a disallowed shell metacharacter: '%s'", cmd)
	}
	return nil
}

// Args validates an ordered argument list: bounded count and length, same
// metacharacter ban as Command.
func Args(args []string) error {
	if len(args) > maxArgs {
		return routererr.Validation("Too many arguments (max %d)", maxArgs)
	}
	for _, a := range args {
		if len(a) > maxArgLen {
			return routererr.Validation("Argument too long (max %d characters): %q", maxArgLen, a)
		}
		if strings.ContainsAny(a, shellMetacharacters) {
			return routererr.Validation("Argument contains a disallowed shell metacharacter: %q", a)
		}
	}
	return nil
}

// Env validates an environment map: bounded entry count, shell-identifier
// keys (so env consumers that expand `$KEY` can't be confused).
func Env(env map[string]string) error {
	if len(env) > maxEnvEntries {
		return routererr.Validation("Too many env entries (max %d)", maxEnvEntries)
	}
	for k := range env {
		if !envKeyPattern.MatchString(k) {
			return routererr.Validation("Invalid env var name: %q", k)
		}
	}
	return nil
}

// Metadata validates the opaque metadata bag: only its size is constrained,
// its values are never interpreted.
func Metadata(meta map[string]any) error {
	if len(meta) > maxMetaEntries {
		return routererr.Validation("Too many metadata entries (max %d)", maxMetaEntries)
	}
	return nil
}

// Transport validates the transport kind against the three supported values.
func Transport(transport string) error {
	switch transport {
	case "stdio", "sse", "http":
		return nil
	default:
		return routererr.Validation("Invalid transport type: %s. Must be one of: stdio, sse, http", transport)
	}
}

// PathWithinRoot resolves candidate relative to root and rejects any result
// that escapes root lexically (path-traversal guard, invariant (v) in §3).
func PathWithinRoot(root, candidate string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", routererr.Validation("invalid root path: %v", err)
	}
	target := filepath.Join(absRoot, candidate)
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", routererr.Validation("invalid path: %v", err)
	}
	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", routererr.Validation("path traversal detected: %q is outside base directory", candidate)
	}
	return absTarget, nil
}

// ToolName validates a tool name as accepted from an upstream mcp.router.call
// invocation: bounded length, free of path/shell metacharacters.
func ToolName(name string) error {
	if name == "" || len(name) > 200 {
		return routererr.Validation("Tool name must be between 1 and 200 characters")
	}
	for _, c := range []string{"/", "\\", "..", ";", "|", "&", "$", "`"} {
		if strings.Contains(name, c) {
			return routererr.Validation("Tool name contains dangerous character: %s", c)
		}
	}
	return nil
}
