// Package main is the entry point for the bibliodb server.
//
// bibliodb serves the library's JSON data files over an HTTP API. The data
// file locations, circulation rules and authentication secret are read from a
// YAML configuration file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maruel/bibliodb/internal/buildinfo"
	"github.com/maruel/bibliodb/internal/config"
	"github.com/maruel/bibliodb/internal/logging"
	"github.com/maruel/bibliodb/internal/server"
	"github.com/maruel/bibliodb/internal/storage"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bibliodb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to the YAML configuration file; defaults apply when empty")
	httpAddr := flag.String("http", "", "Address to listen on; overrides Server:Addr")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	watch := flag.Bool("watch", false, "Reload the data files when they change on disk")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	info := buildinfo.Get()
	if *version {
		info.Print(os.Stdout, "bibliodb")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ll := logging.Setup()
	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	ll.Set(level)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *httpAddr != "" {
		cfg.Server.Addr = *httpAddr
	}
	addr := cfg.Server.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	var opts []storage.Option
	if cfg.History.Enabled {
		h, err := storage.OpenHistory(cfg.History.Dir, cfg.History.AuthorName, cfg.History.AuthorEmail)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		slog.InfoContext(ctx, "Recording history", "dir", h.Dir())
		opts = append(opts, storage.WithHistory(h))
	}
	store, err := storage.NewStore(cfg.JSONPaths, opts...)
	if err != nil {
		return err
	}
	if err := store.LoadData(ctx); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	if *watch {
		if err := store.Watch(ctx, func(path string) {
			slog.InfoContext(ctx, "Data file changed", "path", path)
		}); err != nil {
			return fmt.Errorf("failed to watch data files: %w", err)
		}
	}
	if cfg.Auth.JWTSecret == "" {
		slog.WarnContext(ctx, "No JWT secret configured; write endpoints are open")
	}

	router := server.NewRouter(store, cfg, info.Version)
	defer router.Close()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "version", info.Version)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}
