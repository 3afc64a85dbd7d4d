// runpipe runs the extraction pipeline once on a local PDF and prints
// the final state as JSON. Useful for testing prompts and backends
// without standing up the daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/llm/openai"
	"github.com/factura-labs/invoice-pipeline/internal/pdf"
	"github.com/factura-labs/invoice-pipeline/internal/pipeline"
	"github.com/factura-labs/invoice-pipeline/internal/state"
)

func main() {
	var (
		file    = flag.String("file", "", "path to the PDF to process")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: runpipe -file invoice.pdf")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(*file, logger); err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}

func run(file string, logger *slog.Logger) error {
	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

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

	orch := pipeline.NewOrchestrator(nil, logger,
		pipeline.NewIngestStage(cfg.Pipeline.MaxPDFSizeMB, backends, logger),
		pipeline.NewExtractStage(backends, cfg.Pipeline.MaxPages, logger),
		pipeline.NewCleanStage(logger),
		pipeline.NewLLMStage(client, client.Model(), cfg.LLM.Timeout, logger),
	)

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	st := state.New(uuid.New(), abs, filepath.Base(abs), 0)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Queue.JobTimeout)
	defer cancel()
	final := orch.Run(ctx, st)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(final)
}
