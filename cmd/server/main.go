package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/database"
	"github.com/iliyamo/seat-reservation-admin/internal/logger"
	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/middleware"
	"github.com/iliyamo/seat-reservation-admin/internal/queue"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
	"github.com/iliyamo/seat-reservation-admin/internal/router"
	"github.com/iliyamo/seat-reservation-admin/internal/service"
	"github.com/iliyamo/seat-reservation-admin/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	log := logger.New(logger.Options{
		ServiceName: "seat-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Error(ctx, "db.open_failed", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		results, err := database.Migrate(ctx, db, cfg.DB.Driver)
		if err != nil {
			log.Error(ctx, "db.migrate_failed", err)
			os.Exit(1)
		}
		log.Info(log.WithField(ctx, "applied", len(results)), "db.migrated")
	}

	tokens, err := utils.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Error(ctx, "auth.token_issuer_failed", err)
		os.Exit(1)
	}
	accounts, err := service.NewAccounts(repository.NewUserRepo(db), tokens, cfg.Auth.BcryptCost, log)
	if err != nil {
		log.Error(ctx, "auth.accounts_failed", err)
		os.Exit(1)
	}
	if cfg.Bootstrap.Enabled {
		if _, _, err := accounts.EnsureSuperadmin(ctx, cfg.Bootstrap); err != nil {
			log.Error(ctx, "bootstrap.superadmin_failed", err)
			os.Exit(1)
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn(ctx, "redis.unavailable", errors.New("cache and rate limiting disabled"))
	} else {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	var events queue.Publisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		events = queue.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue, log)
	}
	defer events.Close()

	layoutRepo := repository.NewLayoutRepo(db)
	e := router.New(router.Deps{
		Log:         log,
		CORSOrigins: cfg.App.CORSOrigins,
		Accounts:    accounts,
		Layouts:     service.NewLayouts(layoutRepo, bookingMetrics, log),
		Ledger:      service.NewLedger(repository.NewBookingRepo(db), layoutRepo, events, bookingMetrics, log),
		Cache:       middleware.NewResponseCache(cfg.Cache, rdb, log),
		LoginLimit:  middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Gatherer:    reg,
	})

	addr := ":" + cfg.App.Port
	go func() {
		log.Info(log.WithFields(ctx, map[string]any{"addr": addr, "env": cfg.App.Env}), "server.listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server.failed", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server.shutdown_failed", err)
	}
	log.Info(ctx, "server.stopped")
}
