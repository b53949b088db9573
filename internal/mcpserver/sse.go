package mcpserver

import (
	"context"
	"net/http"
	"time"

	sdkserver "github.com/mark3labs/mcp-go/server"
)

// ServeSSE runs the façade over SSE at addr until ctx is canceled, using
// mcp-go's built-in SSE server mounted on its own http.Server so shutdown
// follows the same graceful-shutdown shape as the admin server.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := sdkserver.NewSSEServer(s.mcpServer, sdkserver.WithBaseURL("http://"+addr))

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           sse,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
