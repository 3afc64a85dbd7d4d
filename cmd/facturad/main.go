// facturad is the invoice-pipeline daemon: it accepts PDF uploads over
// HTTP, runs the extraction pipeline in the background, and serves the
// job status/result API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/export"
	"github.com/factura-labs/invoice-pipeline/internal/jobs"
	"github.com/factura-labs/invoice-pipeline/internal/llm/openai"
	"github.com/factura-labs/invoice-pipeline/internal/pdf"
	"github.com/factura-labs/invoice-pipeline/internal/pipeline"
	"github.com/factura-labs/invoice-pipeline/internal/registry"
	"github.com/factura-labs/invoice-pipeline/internal/repository"
	"github.com/factura-labs/invoice-pipeline/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	backends := []pdf.Backend{
		&pdf.NativeBackend{},
		pdf.NewPopplerBackend(cfg.Pipeline.Pdftotext),
	}

	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	orch := pipeline.NewOrchestrator(store, logger,
		pipeline.NewIngestStage(cfg.Pipeline.MaxPDFSizeMB, backends, logger),
		pipeline.NewExtractStage(backends, cfg.Pipeline.MaxPages, logger),
		pipeline.NewCleanStage(logger),
		pipeline.NewLLMStage(client, client.Model(), cfg.LLM.Timeout, logger),
	)

	jobSvc := jobs.NewService(store, orch, logger,
		[]jobs.ServiceOption{jobs.WithRemoveUploads()},
		jobs.WithWorkers(cfg.Queue.Workers),
		jobs.WithQueueSize(cfg.Queue.Size),
		jobs.WithJobTimeout(cfg.Queue.JobTimeout),
	)

	exporter := export.NewService(logger)

	srvOpts := []server.Option{server.WithMaxUploadMB(cfg.Pipeline.MaxPDFSizeMB)}
	if cfg.Database.DSN != "" {
		pool, err := repository.Open(ctx, repository.Config{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			DialTimeout:     cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout); err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithInvoiceRepository(repository.NewInvoiceRepository(pool, logger)))
	} else {
		logger.Warn("DB_URL not set, invoice persistence disabled")
	}

	srv := server.New(cfg.Server.Addr, cfg.Server.UploadDir, jobSvc, exporter, logger, srvOpts...)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	jobSvc.Shutdown(shutdownCtx)
	logger.Info("bye")
	return nil
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case "sqlite":
		return registry.OpenSQLite(ctx, cfg.Registry.SQLitePath, logger)
	default:
		return registry.NewMemoryStore(logger,
			registry.WithTTL(cfg.Registry.TTL),
			registry.WithMaxEntries(cfg.Registry.MaxEntries),
		), nil
	}
}
