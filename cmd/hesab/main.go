package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hesab/internal/amqp"
	"hesab/internal/auth"
	"hesab/internal/cli"
	apphttp "hesab/internal/http"
	"hesab/internal/services"
)

func main() {
	ctx := context.Background()
	cfg := cli.Bootstrap(ctx, "api")

	repo := cli.MustStorage(ctx, cfg.SQLiteDBPath)
	defer repo.Close()

	tokens, err := auth.NewTokenManager([]byte(cfg.JWTSecret), cfg.TokenIssuer, cfg.TokenTTL, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize token manager", "error", err)
		os.Exit(1)
	}

	// The API keeps serving without AMQP; pending rows are picked up by the
	// worker's periodic scan instead.
	var publisher services.SyncPublisher
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.WarnContext(ctx, "amqp unavailable, sync notifications disabled", "error", err)
	} else {
		defer amqpClient.Close()
		publisher = amqpClient
	}

	ledger := services.NewLedgerService(repo, publisher)

	if cfg.AdminPassword != "" {
		if err := ledger.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			slog.ErrorContext(ctx, "failed to bootstrap admin user", "error", err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(cfg.Addr(), ledger, tokens)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.InfoContext(ctx, "shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "graceful shutdown failed", "error", err)
		}
	}()

	slog.InfoContext(ctx, "starting server", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server error", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(ctx, "server stopped")
}
