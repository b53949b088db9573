package admin

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mcprouter/mcprouter/internal/mcp"
	"github.com/mcprouter/mcprouter/internal/router"
)

// Server is the admin HTTP server: REST routes, health, and the realtime
// log WebSocket. The /api/ routes sit behind an optional bearer-token gate
// and a config-driven CORS policy; the health routes get CORS only, the
// WebSocket route the token gate only, and / neither.
type Server struct {
	mux  *http.ServeMux
	auth *Auth
	log  *zap.Logger
}

// Config configures NewServer.
type Config struct {
	Router            *router.Router
	Registry          *mcp.Registry
	BearerToken       string
	EnableAuth        bool
	CORSOrigin        string
	EnableRealtimeLog bool
	WSCore            *WSLogCore // non-nil only when EnableRealtimeLog is true
	Log               *zap.Logger
}

// NewServer builds the admin mux, applying CORS and auth per route as
// described on Server.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()
	auth := NewAuth(cfg.BearerToken, cfg.EnableAuth)
	origins := CORSOrigins(cfg.CORSOrigin)

	apiRoutes := Routes(cfg.Router)
	mux.Handle("/api/", withCORS(auth.Middleware(apiRoutes), origins))

	health := NewHealthHandler(HealthInfo{Instances: cfg.Registry.List})
	mux.Handle("/api/health", withCORS(health, origins))
	mux.Handle("/health", withCORS(health, origins))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": "mcprouter", "status": "ok"})
	})

	if cfg.EnableRealtimeLog && cfg.WSCore != nil {
		mux.Handle("/ws/logs", auth.Middleware(http.HandlerFunc(cfg.WSCore.HandleWS)))
	}

	return &Server{mux: mux, auth: auth, log: cfg.Log}
}

func withCORS(next http.Handler, origins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(origins) > 0 {
			origin = origins[0]
			if origin != "*" {
				for _, o := range origins {
					if o == r.Header.Get("Origin") {
						origin = o
						break
					}
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the server at addr until ctx is canceled (by the process-wide
// signal handler installed in main), then shuts down gracefully with a
// 10-second budget.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down admin server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("admin server shutdown error", zap.Error(err))
		}
	}()

	s.log.Info("admin server listening", zap.String("addr", addr))
	err := httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
