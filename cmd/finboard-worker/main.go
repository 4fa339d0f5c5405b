package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cli"
	"finboard/internal/client"
	"finboard/internal/config"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/scheduler"
	"finboard/internal/sheets"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/sheets/memory"
	"finboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting finboard-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	loader, cleanup, err := newLoader(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize record source", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Error("Record source cleanup failed", log.FieldError, err)
		}
	}()

	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(loader, exporter, logger)

	// Catch up on anything changed while the worker was down.
	if n, err := syncWorker.ExportAll(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err)
	} else {
		logger.Info("Startup export complete", log.FieldCount, n)
	}

	sched, err := scheduler.New(cfg.ExportSchedule, cfg.Location(), func(ctx context.Context) error {
		_, err := syncWorker.ExportAll(ctx)
		return err
	}, logger)
	if err != nil {
		logger.Error("Invalid export schedule", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Start()
		logger.Info("Export scheduled", "schedule", cfg.ExportSchedule, "next_run", sched.Next())
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		sched.Stop(stopCtx)
		return nil
	})

	if cfg.AMQPEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeRecordChanges(gctx, syncWorker.HandleRecordChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("AMQP disabled, relying on the export schedule only")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	status := syncWorker.Status()
	logger.Info("Worker shutdown complete",
		"last_export", status.LastExport.Format(time.RFC3339),
		log.FieldCount, status.Reports,
		"failures", status.Failures)
}

// newLoader reads records straight from storage when the server persists
// them, and from the server's API when it keeps them in memory.
func newLoader(ctx context.Context, cfg *config.Config, logger *log.Logger) (ledger.Loader, backend.CleanupFunc, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := res.Cleanup
	if cleanup == nil {
		cleanup = func() error { return nil }
	}
	if res.Persister != nil {
		return res.Persister, cleanup, nil
	}
	logger.Info("Reading records from the finboard API", "url", cfg.APIBaseURL)
	return client.New(cfg.APIBaseURL), cleanup, nil
}

func newExporter(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.ReportExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, keeping exports in memory")
		return memory.New(), nil
	}
	exp, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets exporter ready", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return exp, nil
}
