package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"mptreasury/internal/config"
	"mptreasury/internal/logger"
	"mptreasury/internal/pipeline"
	"mptreasury/internal/shutdown"
	"mptreasury/internal/web"
)

func main() {
	var (
		port       int
		configPath string
	)

	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&configPath, "config", "", "Config file path")
	flag.Parse()

	cfg, err := config.LoadConfigFile(configPath)
	if err == nil {
		err = cfg.ApplyEnv()
	}
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger with file logging
	l := logger.New(cfg.Verbose)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("mptreasury-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to setup file logging: %v\n", err)
		}
	}
	defer l.Close()

	p, err := pipeline.New(cfg, l)
	if err != nil {
		l.Error("%v", err)
		os.Exit(1)
	}
	defer p.Close()

	sh := shutdown.New()
	sh.Listen()

	jobMgr := web.NewJobManager()
	jobMgr.StartCleanup(sh.Context())
	server := web.NewServer(sh.Context(), jobMgr, p, l)

	// Jobs write to the websocket until they finish, so no WriteTimeout.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Info("Starting web server on port %d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			l.Error("Server error: %v", err)
		}
	case <-sh.Context().Done():
	}
	sh.Shutdown()

	l.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}
	server.Wait()

	l.Info("Server stopped")
}
