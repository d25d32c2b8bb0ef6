// Command ledger-worker consumes report requests from AMQP, runs the
// analyzer for each one, and publishes the results. When LEDGER_HTTP_ADDR is
// set it also serves the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	apihttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(os.Getenv("LEDGER_LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(bootstrap)
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(log.ComponentWorker)

	logger.Info("Starting ledger-worker",
		log.FieldDBPath, cfg.DBPath,
		log.FieldExecutable, cfg.AnalyzerEntryPoint,
		"timeout", cfg.AnalyzerTimeout,
		"http_addr", cfg.HTTPAddr)

	// Creates the schema so the analyzer never sees a missing table
	repo := cli.InitSQLite(logger, cfg.DBPath)
	defer repo.Close()

	runner := cli.NewRunner(cfg, logger)
	reports := services.NewReportService(runner, cfg.DBPath, logger)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPResultQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reportWorker := worker.NewReportWorker(reports, amqpClient, logger)

	// Setup graceful shutdown
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var server *apihttp.Server
	if cfg.HTTPAddr != "" {
		server = apihttp.NewServer(cfg.HTTPAddr, apihttp.Options{
			Reports:      reports,
			Publisher:    amqpClient,
			Transactions: services.NewTransactionService(repo, logger),
			Checks:       readinessChecks(cfg, runner.EntryPoint()),
		}, logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeReportRequestsWithRetry(gctx, reportWorker.HandleReportRequest)
	})
	if server != nil {
		g.Go(func() error {
			logger.Info("HTTP API listening", "addr", cfg.HTTPAddr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
		// An in-flight report is cancelled with ctx; wait for its analyzer to be reaped
		select {
		case err = <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn("Shutdown timeout reached")
			return
		}
	case err = <-done:
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// readinessChecks reports the worker ready once both the ledger database and
// the analyzer entry point are on disk.
func readinessChecks(cfg *config.Config, entryPoint string) []apihttp.Check {
	exists := func(path string) func(context.Context) error {
		return func(context.Context) error {
			if _, err := os.Stat(path); err != nil {
				return err
			}
			return nil
		}
	}
	return []apihttp.Check{
		{Name: "database", Run: exists(cfg.DBPath)},
		{Name: "analyzer", Run: exists(entryPoint)},
	}
}

