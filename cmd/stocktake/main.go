package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warehox/stocktake/internal/bulkload"
	"github.com/warehox/stocktake/internal/config"
	"github.com/warehox/stocktake/internal/domain/catalog"
	"github.com/warehox/stocktake/internal/domain/inventory"
	"github.com/warehox/stocktake/internal/domain/scan"
	"github.com/warehox/stocktake/internal/export"
	"github.com/warehox/stocktake/internal/infra/db"
	httpx "github.com/warehox/stocktake/internal/infra/http"
	"github.com/warehox/stocktake/internal/infra/logger"
	"github.com/warehox/stocktake/internal/infra/metrics"
	"github.com/warehox/stocktake/internal/web"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := db.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db open failed", "err", err)
		return
	}
	defer provider.Close()
	log.Info("db connected")

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		log.Error("upload dir unavailable", "dir", cfg.Upload.Dir, "err", err)
		return
	}

	warehouses := catalog.NewRepo(provider)
	products := inventory.NewRepo(provider)
	scans := scan.NewRepo(provider)
	reconciler := scan.NewReconciler(scan.PgStore{Products: products, Scans: scans}, log)

	handler := &web.Handler{
		Log:        log,
		Scans:      reconciler,
		Warehouses: warehouses,
		Products:   products,
		Loader:     bulkload.New(products, log),
		Exporter:   export.New(products, cfg.Upload.Dir, log),
		Metrics:    metrics.New(prometheus.DefaultRegisterer),
	}

	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, handler.Routes())
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
