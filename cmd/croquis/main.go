// Command croquis is the collaborative drawing-scene server: websocket rooms,
// a REST API and optional MCP tools over one shared scene cache.
//
// Usage:
//
//	croquis                          # listen on :8787 with defaults
//	croquis -config croquis.yaml     # run with config file
//	croquis -addr :9000              # override the listen address
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/croquis/audit"
	"github.com/hazyhaar/croquis/collab"
	"github.com/hazyhaar/croquis/httpapi"
	"github.com/hazyhaar/croquis/shield"
	"github.com/hazyhaar/croquis/ws"
)

func main() {
	configPath := flag.String("config", "", "path to croquis.yaml config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *addr); err != nil {
		logger.Error("croquis: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, addr string) error {
	cfg := &Config{}
	if configPath != "" {
		loaded, err := LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.applyEnv()
	if addr != "" {
		cfg.Addr = addr
	}
	cfg.defaults()

	opts := []collab.Option{collab.WithLogger(logger)}

	// Optional audit event log.
	if cfg.AuditDB != "" {
		db, err := audit.Open(cfg.AuditDB)
		if err != nil {
			return err
		}
		defer db.Close()

		auditLogger := audit.NewLogger(db, audit.WithLogger(logger))
		if err := auditLogger.Init(); err != nil {
			return err
		}
		if err := auditLogger.Cleanup(ctx, cfg.AuditRetentionDays); err != nil {
			logger.Warn("audit cleanup", "error", err)
		}
		opts = append(opts, collab.WithAudit(auditLogger))
		logger.Info("audit log enabled", "db", cfg.AuditDB)
	}

	svc := collab.New(cfg.Collab, opts...)
	defer svc.Shutdown()

	// Optional MCP over stdio, alongside HTTP.
	if cfg.MCPTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "croquis",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("MCP stdio", "error", err)
			}
		}()
		logger.Info("MCP stdio transport started")
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Handle("/ws", ws.NewHandler(svc, ws.WithLogger(logger)))
	r.Mount("/", httpapi.NewHandler(svc, httpapi.WithLogger(logger)).Routes())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("croquis: listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("croquis: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
