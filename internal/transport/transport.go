// Package transport builds an mcp-go client for one of the three supported
// wire transports (C1 in the design): stdio, sse, and streamable http. It is
// the single place that knows how to turn a provider's normalized settings
// into a connected SDK client.
package transport

import (
	"bufio"
	"context"
	"io"
	"strings"

	sdk_client "github.com/mark3labs/mcp-go/client"
	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/routererr"
)

// Config is the subset of a provider's settings needed to dial a transport.
type Config struct {
	Transport string // "stdio" | "sse" | "http"
	Command   string
	Args      []string
	Env       []string // "KEY=VALUE" pairs, stdio only
	URL       string   // sse/http only
}

// noiseSubstrings match known-benign stdio child output that isn't a JSON-RPC
// frame: banners and the SDK's own parse-failure log line when a child
// briefly writes plain text before its first frame. These are demoted to
// DEBUG rather than dropped, so they stay visible when diagnosing a child
// that never gets as far as speaking the protocol.
var noiseSubstrings = []string{
	"Failed to parse JSONRPC message",
	"running on stdio",
	"MCP server started",
}

func isNoise(line string) bool {
	for _, s := range noiseSubstrings {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// drainStderr forwards a stdio child's stderr to the logging façade line by
// line until the pipe closes. It never parses the stream as protocol: stderr
// and the JSON-RPC frames on stdout are entirely separate channels.
func drainStderr(r io.Reader, name string, log *zap.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if isNoise(line) {
			log.Debug("stdio child stderr", zap.String("instance", name), zap.String("line", line))
			continue
		}
		log.Warn("stdio child stderr", zap.String("instance", name), zap.String("line", line))
	}
}

// Dial constructs and starts an mcp-go client for cfg. The returned client
// has not yet performed the MCP initialize handshake; the caller owns that
// (C2's ClientSession does, so a partially-initialized client is never
// visible outside this package). log receives the stdio child's drained
// stderr; it must not be nil.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (sdk_client.MCPClient, error) {
	switch cfg.Transport {
	case "stdio":
		cli, err := sdk_client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
		if err != nil {
			return nil, routererr.Transport("failed to start stdio transport: %v", err)
		}
		if stderr, ok := sdk_client.GetStderr(cli); ok {
			go drainStderr(stderr, cfg.Command, log)
		}
		return cli, nil

	case "sse":
		cli, err := sdk_client.NewSSEMCPClient(cfg.URL)
		if err != nil {
			return nil, routererr.Transport("failed to create SSE transport: %v", err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, routererr.Transport("failed to start SSE transport: %v", err)
		}
		return cli, nil

	case "http":
		cli, err := sdk_client.NewStreamableHttpClient(cfg.URL)
		if err != nil {
			return nil, routererr.Transport("failed to create streamable HTTP transport: %v", err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, routererr.Transport("failed to start streamable HTTP transport: %v", err)
		}
		return cli, nil

	default:
		return nil, routererr.Transport("unsupported transport type: %q", cfg.Transport)
	}
}
