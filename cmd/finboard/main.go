package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cli"
	apphttp "finboard/internal/http"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldBackend, backendCfg.Type, log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}
	}()

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Notifications are optional; the dashboard keeps working without them.
			logger.Warn("AMQP unavailable, record changes will not be published", log.FieldError, err)
		} else {
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange)
		}
	}

	seed, err := ledger.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		logger.Error("Failed to load seed records", "seed_file", cfg.SeedFile, log.FieldError, err)
		os.Exit(1)
	}

	svc := services.NewRecordService(ledger.New(nil), res.Persister, publisher, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Record service close failed", log.FieldError, err)
		}
	}()
	if err := svc.Init(ctx, seed); err != nil {
		logger.Error("Failed to load records", log.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		Currency:        cfg.DisplayCurrency,
		RateLimitPerMin: cfg.RateLimitPerMin,
		TrustedProxies:  cfg.TrustedProxies,
		Ready:           res.Ping,
	}, svc, logger)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting finboard server",
			"port", cfg.Port,
			log.FieldBackend, backendCfg.Type,
			"currency", cfg.DisplayCurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			logger.Error("Server error", "port", cfg.Port, log.FieldError, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
