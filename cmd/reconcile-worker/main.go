package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/corporate-rail-bookings/internal/adapters/crdb"
	"github.com/robertarktes/corporate-rail-bookings/internal/config"
	"github.com/robertarktes/corporate-rail-bookings/internal/observability"
	"github.com/robertarktes/corporate-rail-bookings/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg, "rail-reconcile-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	sweeper := reconcile.NewSweeper(repo, cfg.ReconcileGrace, cfg.OutboxBatchSize*10, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, cfg.ReconcileEvery)
	logger.WithFields(map[string]interface{}{
		"grace":    cfg.ReconcileGrace.String(),
		"interval": cfg.ReconcileEvery.String(),
	}).Info("Reconcile worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown reconcile worker")
}
