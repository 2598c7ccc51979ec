package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appOrder "github.com/vechnost/storefront/internal/application/order"
	"github.com/vechnost/storefront/internal/application/storefront"
	"github.com/vechnost/storefront/internal/config"
	"github.com/vechnost/storefront/internal/infrastructure/backend"
	"github.com/vechnost/storefront/internal/infrastructure/id"
	infraobs "github.com/vechnost/storefront/internal/infrastructure/observability"
	"github.com/vechnost/storefront/internal/infrastructure/outbox"
	"github.com/vechnost/storefront/internal/observability"
	"github.com/vechnost/storefront/internal/pkg/logging"
	httppresentation "github.com/vechnost/storefront/internal/presentation/http"
	workerpresentation "github.com/vechnost/storefront/internal/presentation/worker"
)

const (
	backendTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("config_load_failed", zap.Error(err))
	}

	baseLogger := logging.MustNewLogger(logging.Options{
		Service: cfg.ServiceName,
		Env:     cfg.Env,
		LogFile: cfg.LogFile,
		Debug:   cfg.Debug,
	})
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tel := infraobs.Build(infraobs.Setup{
		Service:  cfg.ServiceName,
		Logger:   baseLogger,
		Registry: registry,
	})
	systemLogger := tel.Logger().With(observability.F("component", "main"))

	// In-memory bus carries order and catalog events to the refresher.
	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	client := backend.NewClient(&http.Client{Timeout: backendTimeout}, id.NewUUIDGenerator(), tel)
	orders := appOrder.NewSubmitOrderUseCase(client, cfg.APIBase(), bus, tel)

	refresher := storefront.NewRefresher(workerpresentation.NewSubscriber(bus, "refresher", tel.Logger()), tel)
	refresher.Start()
	defer refresher.Stop()

	svc := storefront.NewService(storefront.Deps{
		Fetcher:   client,
		Sender:    client,
		Orders:    orders,
		Publisher: bus,
		Refresher: refresher,
		BaseURL:   cfg.APIBase(),
		Tel:       tel,
	})

	limiter := httppresentation.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, tel.Logger())
	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	handler := httppresentation.NewHandler(svc, limiter, metrics, tel.Logger(), tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("backend", cfg.APIBase()),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.Err(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
}
