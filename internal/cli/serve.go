package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/brt-fare-chart/internal/config"
	"github.com/iliyamo/brt-fare-chart/internal/fares"
	"github.com/iliyamo/brt-fare-chart/internal/handler"
	"github.com/iliyamo/brt-fare-chart/internal/middleware"
	"github.com/iliyamo/brt-fare-chart/internal/queue"
	"github.com/iliyamo/brt-fare-chart/internal/router"
	queue_publisher "github.com/iliyamo/brt-fare-chart/internal/service"
)

// serve starts the HTTP API and blocks until ctx is cancelled.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	if _, err := os.Stat(cfg.WorkbookPath); err != nil {
		return fmt.Errorf("excel file not found at %s: %w", cfg.WorkbookPath, err)
	}

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		a.logger.Warn("redis unavailable; using in-process response cache and no rate limiting")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	opts := []fares.StoreOption{fares.WithLogger(a.logger)}
	if cfg.Audit.Enabled {
		opts = append(opts, fares.WithLoadHook(queue_publisher.LoadHook(cfg.Audit.URL, cfg.Audit.Queue, cfg.WorkbookPath, cfg.StrictRows, a.logger)))
	}
	store := fares.NewStore(fares.FileSource{Path: cfg.WorkbookPath, Strict: cfg.StrictRows, Logger: a.logger}, opts...)

	if cfg.Audit.Consumer {
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.Audit.URL, cfg.Audit.Queue, cfg.Audit.LogDir, a.logger); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("audit consumer stopped", "err", err)
			}
		}()
	}

	e := newEcho(cfg, store, rdb, a.logger)
	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("server running", "addr", addr, "env", cfg.Env, "workbook", cfg.WorkbookPath)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	a.logger.Info("server shut down")
	return nil
}

// newEcho assembles the HTTP stack around store. rdb may be nil.
func newEcho(cfg config.Config, store *fares.Store, rdb *redis.Client, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))

	h := handler.NewFareHandler(store, cfg.WorkbookPath, cfg.DownloadName, logger)
	router.RegisterRoutes(e, router.Probes{Status: store})
	router.RegisterFares(e, h, router.APIMiddleware{
		Group: []echo.MiddlewareFunc{
			middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
			middleware.EnsureFares(store),
		},
		Cache: middleware.NewResponseCache(config.LoadCacheConfig(), rdb),
	})
	return e
}
