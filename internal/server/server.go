// Package server is the HTTP surface: upload a PDF, poll the job, fetch
// the result, and optionally persist or export confirmed invoices.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/factura-labs/invoice-pipeline/internal/export"
	"github.com/factura-labs/invoice-pipeline/internal/jobs"
	"github.com/factura-labs/invoice-pipeline/internal/repository"
)

type Server struct {
	jobs      *jobs.Service
	invoices  repository.InvoiceRepository
	exporter  *export.Service
	uploadDir string
	maxSizeMB int64
	logger    *slog.Logger

	http *http.Server
}

type Option func(*Server)

// WithInvoiceRepository enables the /invoices endpoints. Without it they
// respond 503.
func WithInvoiceRepository(repo repository.InvoiceRepository) Option {
	return func(s *Server) { s.invoices = repo }
}

func WithMaxUploadMB(mb int64) Option {
	return func(s *Server) {
		if mb > 0 {
			s.maxSizeMB = mb
		}
	}
}

func New(addr, uploadDir string, jobSvc *jobs.Service, exporter *export.Service, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		jobs:      jobSvc,
		exporter:  exporter,
		uploadDir: uploadDir,
		maxSizeMB: 10,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Post("/upload", s.handleUpload)
	r.Get("/status/{jobID}", s.handleStatus)
	r.Get("/result/{jobID}", s.handleResult)
	r.Get("/jobs", s.handleListJobs)
	r.Delete("/jobs/{jobID}", s.handleDeleteJob)

	r.Post("/invoices", s.handleSaveInvoice)
	r.Get("/invoices", s.handleListInvoices)
	r.Get("/invoices/stats", s.handleInvoiceStats)
	r.Get("/invoices/{id}", s.handleGetInvoice)
	r.Post("/invoices/export", s.handleExportInvoice)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
