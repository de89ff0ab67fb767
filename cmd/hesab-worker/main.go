package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hesab/internal/amqp"
	"hesab/internal/cli"
	"hesab/internal/sheets"
	"hesab/internal/sheets/google"
	"hesab/internal/sheets/memory"
	"hesab/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := cli.Bootstrap(ctx, "worker")

	repo := cli.MustStorage(ctx, cfg.SQLiteDBPath)
	defer repo.Close()

	var writer sheets.TransactionWriter
	if cfg.GoogleSpreadsheetID != "" {
		gc, err := google.NewFromEnv(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to initialize google sheets client", "error", err)
			os.Exit(1)
		}
		writer = gc
		slog.InfoContext(ctx, "exporting to google sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memory.New()
		slog.WarnContext(ctx, "GOOGLE_SPREADSHEET_ID not set, exporting to in-memory store")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to amqp", "error", err, "url", cfg.AMQPURL)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, writer, cfg.SyncBatchSize)

	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		slog.WarnContext(ctx, "startup sync check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeTransactionSync(gctx, func(msg *amqp.TransactionSyncMessage) error {
			return syncWorker.HandleSyncMessage(gctx, msg)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := syncWorker.ProcessPending(gctx); err != nil {
					slog.ErrorContext(gctx, "periodic sync failed", "error", err)
				}
			}
		}
	})

	slog.InfoContext(ctx, "worker started", "sync_interval", cfg.SyncInterval.String(), "batch_size", cfg.SyncBatchSize)

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "worker error", "error", err)
		os.Exit(1)
	}

	slog.InfoContext(context.Background(), "worker stopped")
}
