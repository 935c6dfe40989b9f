// Package app wires configuration, storage, clients and services into a
// runnable order-sync process. Both the HTTP entrypoint and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"shopify-order-sync/internal/client"
	"shopify-order-sync/internal/config"
	"shopify-order-sync/internal/handler"
	"shopify-order-sync/internal/ledger"
	"shopify-order-sync/internal/logger"
	"shopify-order-sync/internal/metrics"
	"shopify-order-sync/internal/queue"
	"shopify-order-sync/internal/ratelimit"
	"shopify-order-sync/internal/repository"
	"shopify-order-sync/internal/retry"
	"shopify-order-sync/internal/server"
	"shopify-order-sync/internal/service"

	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	Config *config.Config
	DB     *gorm.DB
	Repos  *repository.Repositories
	Ledger *ledger.Ledger

	Limiter *ratelimit.Limiter
	Queue   *queue.Queue

	Sync     service.OrderSyncService
	Invoices service.InvoiceService
	Cancel   service.CancellationService
	Admin    service.AdminService
}

func New(cfg *config.Config) (*App, error) {
	db, err := client.InitDB(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	repos := repository.New(db)

	var buckets ratelimit.BucketStore = repos.Buckets
	if cfg.RateLimit.Store == "memory" {
		buckets = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(buckets,
		ratelimit.WithPoll(cfg.RateLimit.Poll),
		ratelimit.WithMaxWait(cfg.RateLimit.MaxWait),
	)

	deps := &service.Deps{
		Repos:  repos,
		Ledger: ledger.New(repos.Ledger),
		Retry: retry.Policy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
		},
		LockPolicy: retry.LockPolicy{
			TTL:  cfg.Lock.TTL,
			Wait: cfg.Lock.Wait,
			Poll: cfg.Lock.Poll,
		},
		Shopify: client.NewShopifyClient(&cfg.Shopify, limiter),
	}
	if cfg.ShipStation.APIKey != "" {
		deps.ShipStation = client.NewShipStationClient(&cfg.ShipStation)
	} else {
		logger.Logger.Info().Msg("shipstation api key not set, shipment cancels disabled")
	}

	q := queue.New(cfg.Worker.QueueSize, cfg.Worker.DedupeWindow, cfg.Worker.JobTimeout)

	invoices := service.NewInvoiceService(deps)
	cancel := service.NewCancellationService(deps)
	sync := service.NewOrderSyncService(deps, invoices, cancel)

	return &App{
		Config:   cfg,
		DB:       db,
		Repos:    repos,
		Ledger:   deps.Ledger,
		Limiter:  limiter,
		Queue:    q,
		Sync:     sync,
		Invoices: invoices,
		Cancel:   cancel,
		Admin:    service.NewAdminService(deps, sync, invoices, limiter, q),
	}, nil
}

// Server builds the HTTP server on top of the app's services.
func (a *App) Server() *server.Server {
	webhooks := handler.NewWebhookHandler(a.Repos.Stores, a.Ledger, a.Queue, a.Sync, a.Config.Worker.JobTimeout)
	return server.NewServer(webhooks, handler.NewAdminHandler(a.Admin), a.Config.Admin.JWTSecret)
}

// Serve runs the workers and the HTTP server until ctx is cancelled, then
// stops accepting requests and drains queued jobs.
func (a *App) Serve(ctx context.Context) error {
	metrics.Register()

	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()
	a.Queue.Start(workCtx, a.Config.Worker.Count)

	srv := a.Server()
	addr := net.JoinHostPort(a.Config.HTTP.Host, a.Config.HTTP.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", addr).Int("workers", a.Config.Worker.Count).Msg("starting HTTP server")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Logger.Info().Msg("shutdown requested, draining")
	case err := <-errCh:
		a.Queue.Stop()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("http server shutdown")
	}
	a.Queue.Stop()
	logger.Logger.Info().Msg("shutdown complete")
	return nil
}

func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
