package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fiscalgate/internal/config"
	"fiscalgate/internal/infra"
	"fiscalgate/internal/repository"
	"fiscalgate/internal/router"
	"fiscalgate/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL, cfg.WorkerPoolSize)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Composition root for background processing: the worker pool replays
	// stored check payloads against the gateway, the email worker mails
	// fiscalized receipts, the retry cron polls and re-sends through the
	// circuit breaker.
	tokenStore := infra.NewRedisTokenStore(rdb)
	gateways := infra.NewGatewayFactory(cfg, tokenStore)
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	registerRepo := repository.NewRegisterRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)

	workerHandlers := &worker.WorkerHandlers{
		Fiscal: worker.NewFiscalWorker(receiptRepo, registerRepo, gateways),
		Email:  worker.NewEmailWorker(receiptRepo, mailer, cfg.PDFStoragePath),
	}
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	gatewayCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		ReceiptRepo:  receiptRepo,
		RegisterRepo: registerRepo,
		Gateways:     gateways,
		CB:           gatewayCB,
		RDB:          rdb,
		Dispatcher:   dispatcher,
	})

	r := router.New(cfg, db, rdb, gatewayCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("fiscalgate listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
