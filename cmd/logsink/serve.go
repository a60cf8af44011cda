package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/logsink-io/logsink/internal/config"
	"github.com/logsink-io/logsink/internal/server"
	"github.com/logsink-io/logsink/internal/sink"
)

const shutdownTimeout = 5 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(viper.GetString("log-level"))

	fileSink, err := sink.Open(cfg.File, cfg.Fsync)
	if err != nil {
		return err
	}

	srv := server.NewIngestServer(cfg, fileSink, logger)
	addr := cfg.Addr()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	fmt.Printf("Listening on %s%s\n", addr, cfg.Endpoint)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		// Bind failure or another fatal server fault.
		fileSink.Close()
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	if err := fileSink.Close(); err != nil {
		logger.Error("close sink", "err", err)
	}

	logger.Info("logsink exited")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
