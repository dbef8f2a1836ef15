// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"staffing-gateway/internal/common/config"
	"staffing-gateway/internal/common/logger"
	"staffing-gateway/internal/gateway/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		return 1
	}

	log, sync := logger.NewService(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Service:     cfg.App.Name,
		Environment: cfg.App.Environment,
		Version:     cfg.App.Version,
	})
	defer sync()

	log.Info("Starting staffing gateway...", nil)

	srv, err := server.New(cfg, log)
	if err != nil {
		log.WithError(err).Error("Gateway assembly failed", nil)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	code := 0
	select {
	case sig := <-sigCh:
		log.Info("Shutdown signal received, draining requests...", map[string]interface{}{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("HTTP server failed", nil)
			code = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown", nil)
		code = 1
	}

	log.Info("Staffing gateway stopped gracefully", nil)
	return code
}
