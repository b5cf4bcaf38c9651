// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/display-order-numbers/internal/config"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/database"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/events"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/handler"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/maintenance"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/repository"
	"github.com/Shivanand-hulikatti/display-order-numbers/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration and logging ─────────────────────────────────────
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	// ── 2. Storage ────────────────────────────────────────────────────────
	var (
		slots  service.SlotStore
		orders service.OrderStore
	)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slots = repository.NewMemorySlotRepository()
		orders = repository.NewMemoryOrderRepository()
		logger.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.DB, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to PostgreSQL", "host", cfg.DB.Host, "database", cfg.DB.Name)

		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		slots = repository.NewSlotRepository(pool)
		orders = repository.NewOrderRepository(pool)
	}

	// ── 3. Slot events ────────────────────────────────────────────────────
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer func() {
			if err := nc.Close(); err != nil {
				logger.Error("closing NATS connection", "error", err)
			}
		}()
		publisher = nc
		logger.Info("publishing slot events", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	// ── 4. Wire up layers ────────────────────────────────────────────────
	numbers := service.NewOrderNumberService(service.AllocatorDeps{
		Slots:   slots,
		Orders:  orders,
		Emitter: events.NewSlotEmitter(publisher, cfg.NATS.SubjectPrefix),
		Logger:  logger,
	}, service.Policy{
		Cooldown:     cfg.Allocator.Cooldown,
		ActiveWindow: cfg.Allocator.ActiveWindow,
	})
	orderSvc := service.NewOrderService(orders, numbers, nil, logger)
	orderHandler := handler.NewOrderHandler(orderSvc, numbers, logger)

	if cfg.Maintenance.Enabled {
		go maintenance.NewSweeper(numbers, cfg.Maintenance.Interval, logger).Run(ctx)
	}

	// ── 5. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler.NewRouter(orderHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
