// Command mcprouter runs the MCP router: a proxy that exposes a fixed
// mcp.router.* tool vocabulary backed by any number of configured upstream
// MCP servers, reachable over stdio, SSE, or streamable HTTP, plus an
// optional REST/WebSocket admin surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mcprouter/mcprouter/internal/admin"
	"github.com/mcprouter/mcprouter/internal/globalconfig"
	"github.com/mcprouter/mcprouter/internal/logging"
	"github.com/mcprouter/mcprouter/internal/mcp"
	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/mcpserver"
	"github.com/mcprouter/mcprouter/internal/router"
	"github.com/mcprouter/mcprouter/internal/validate"
	"github.com/mcprouter/mcprouter/internal/watcher"
	pkgconfig "github.com/mcprouter/mcprouter/pkg/config"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
	dataDir    string
)

func main() {
	pkgconfig.LoadEnv()

	// A single process-wide signal handler, modeled as a context passed down
	// through every subcommand via ExecuteContext. The first SIGINT/SIGTERM
	// cancels ctx so serve loops can shut down gracefully; a second delivery
	// of either signal exits the process immediately with status 1.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
		hard := make(chan os.Signal, 1)
		signal.Notify(hard, syscall.SIGINT, syscall.SIGTERM)
		<-hard
		os.Exit(1)
	}()

	root := &cobra.Command{
		Use:     "mcprouter",
		Short:   "MCP router: proxy a fixed meta-tool vocabulary to configured upstream MCP servers",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json", "path to the global config file")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "override the configured log level")
	root.PersistentFlags().StringVar(&dataDir, "data", "data", "path to the provider data directory")

	root.AddCommand(
		newStdioCmd(),
		newHTTPCmd(),
		newSSECmd(),
		newAPICmd(),
		newAddCmd(),
	)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRuntime loads the global config, sets up logging, and loads the
// instance registry, shared by every subcommand. When watch is true and the
// config's watcher is enabled, it also starts C5 watching the data root and
// every existing provider directory and attaches it to the registry so
// mcp.router.add starts watching a new provider's directory immediately.
// The returned watcher and stop channel are nil when watching isn't active;
// shutdownRuntime handles both cases.
func buildRuntime(stdio, watch bool) (*globalconfig.Config, *zap.Logger, *mcp.Registry, *router.Router, *watcher.Watcher, chan struct{}, error) {
	cfg, err := globalconfig.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(logging.Options{Directory: cfg.Logging.Directory, Level: level, Stdio: stdio})
	if err != nil {
		return nil, nil, nil, nil, nil, nil, err
	}

	registry := mcp.NewRegistry(dataDir, log)
	connected, errs := registry.LoadAll(context.Background())
	log.Info("loaded instances", zap.Int("connected", connected), zap.Int("errors", len(errs)))
	for _, e := range errs {
		log.Warn("instance load error", zap.Error(e))
	}

	r := router.New(registry)

	var w *watcher.Watcher
	var stopWatcher chan struct{}
	if watch && cfg.Watcher.Enabled {
		debounce := time.Duration(cfg.Watcher.DebounceDelay * float64(time.Second))
		w, err = watcher.New(dataDir, debounce, log)
		if err != nil {
			return nil, nil, nil, nil, nil, nil, err
		}
		if err := w.AddProviderDir(dataDir); err != nil {
			log.Warn("failed to watch data directory", zap.String("dir", dataDir), zap.Error(err))
		}
		if providers, err := mcpconfig.DiscoverProviders(dataDir); err != nil {
			log.Warn("failed to discover providers for watching", zap.Error(err))
		} else {
			for _, p := range providers {
				dir, err := mcpconfig.ProviderDir(dataDir, p)
				if err != nil {
					continue
				}
				if err := w.AddProviderDir(dir); err != nil {
					log.Warn("failed to watch provider directory", zap.String("provider", p), zap.Error(err))
				}
			}
		}
		registry.AttachWatcher(w)

		stopWatcher = make(chan struct{})
		go w.Run(stopWatcher)
	}

	return cfg, log, registry, r, w, stopWatcher, nil
}

// shutdownRuntime implements the graceful-shutdown sequence mandated for the
// first SIGINT/SIGTERM: stop the watcher, then disconnect every session
// within a 10-second wall-clock budget. A second signal doesn't reach here —
// main's signal goroutine exits the process with status 1.
func shutdownRuntime(w *watcher.Watcher, stopWatcher chan struct{}, registry *mcp.Registry, log *zap.Logger) {
	if w != nil {
		close(stopWatcher)
		if err := w.Close(); err != nil {
			log.Warn("error closing watcher", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		registry.CloseAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn("session teardown exceeded the 10s shutdown budget; continuing")
	}
}

func newStdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the router over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, registry, r, w, stopWatcher, err := buildRuntime(true, true)
			if err != nil {
				return err
			}
			defer shutdownRuntime(w, stopWatcher, registry, log)

			facade := mcpserver.New(r, cfg.Server.AllowInstanceManagement, dataDir, version)
			return facade.ServeStdio(cmd.Context())
		},
	}
}

func newSSECmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "sse",
		Short: "Serve the router over SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, registry, r, w, stopWatcher, err := buildRuntime(false, true)
			if err != nil {
				return err
			}
			defer shutdownRuntime(w, stopWatcher, registry, log)

			facade := mcpserver.New(r, cfg.Server.AllowInstanceManagement, dataDir, version)
			log.Info("SSE server starting", zap.String("addr", addr))
			return facade.ServeSSE(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8001", "address to listen on")
	return cmd
}

func newHTTPCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve the router over streamable HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, registry, r, w, stopWatcher, err := buildRuntime(false, true)
			if err != nil {
				return err
			}
			defer shutdownRuntime(w, stopWatcher, registry, log)

			facade := mcpserver.New(r, cfg.Server.AllowInstanceManagement, dataDir, version)
			handler := mcpserver.NewHTTPHandler(facade)

			mux := http.NewServeMux()
			mux.Handle("/mcp", handler)

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpSrv.ListenAndServe()
			}()

			log.Info("streamable HTTP server listening", zap.String("addr", addr))
			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if err == http.ErrServerClosed {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8002", "address to listen on")
	return cmd
}

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the admin REST/WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, registry, r, w, stopWatcher, err := buildRuntime(false, true)
			if err != nil {
				return err
			}
			defer shutdownRuntime(w, stopWatcher, registry, log)

			var wsCore *admin.WSLogCore
			if cfg.API.EnableRealtimeLog {
				wsCore = admin.NewWSLogCore(zapcore.InfoLevel, zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig()))
			}

			srv := admin.NewServer(admin.Config{
				Router:            r,
				Registry:          registry,
				BearerToken:       cfg.Security.BearerToken,
				EnableAuth:        cfg.Security.EnableValidation,
				CORSOrigin:        cfg.API.CORSOrigin,
				EnableRealtimeLog: cfg.API.EnableRealtimeLog,
				WSCore:            wsCore,
				Log:               log,
			})

			addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
			return srv.Start(cmd.Context(), addr)
		},
	}
}

func newAddCmd() *cobra.Command {
	var (
		typ      string
		command  string
		argsFlag []string
		active   bool
	)
	cmd := &cobra.Command{
		Use:   "add <instance> <provider> [display]",
		Short: "Register a new MCP instance. instance must equal provider.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, provider := args[0], args[1]
			if instance != provider {
				return fmt.Errorf("instance %q must equal provider %q", instance, provider)
			}
			if err := validate.ProviderName(provider); err != nil {
				return err
			}

			_, log, registry, r, _, _, err := buildRuntime(false, false)
			if err != nil {
				return err
			}
			defer registry.CloseAll()
			log.Debug("registering instance", zap.String("provider", provider))

			settings := &mcpconfig.Settings{
				Name:     instance,
				Type:     typ,
				Command:  command,
				Args:     argsFlag,
				Env:      map[string]string{},
				IsActive: active,
				Provider: provider,
				Extra:    orderedmap.New[string, json.RawMessage](),
			}
			if len(args) == 3 {
				display, _ := json.Marshal(args[2])
				settings.Extra.Set("display", display)
			}
			outcome := r.Add(cmd.Context(), provider, settings)
			fmt.Println(outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "stdio", "transport type: stdio, sse, http")
	cmd.Flags().StringVar(&command, "command", "", "stdio command to run")
	cmd.Flags().StringSliceVar(&argsFlag, "args", nil, "command arguments")
	cmd.Flags().BoolVar(&active, "active", true, "whether the instance starts active")
	return cmd
}
