package mcpserver

import (
	"context"
	"os"

	sdkserver "github.com/mark3labs/mcp-go/server"
)

// ServeStdio runs the façade over stdio until ctx is canceled or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return sdkserver.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}
