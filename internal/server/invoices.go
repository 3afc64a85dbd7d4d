package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/entity"
)

type saveInvoiceRequest struct {
	Filename string                `json:"filename"`
	Fields   *entity.InvoiceFields `json:"fields"`
}

// handleSaveInvoice persists a confirmed extraction. Requires the
// Postgres repository to be configured.
func (s *Server) handleSaveInvoice(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrServiceUnavailable, "invoice database not configured"))
		return
	}
	var req saveInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "invalid JSON body"))
		return
	}
	if req.Fields == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "fields is required"))
		return
	}
	id, err := s.invoices.Save(r.Context(), req.Fields, req.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrServiceUnavailable, "invoice database not configured"))
		return
	}
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, common.WrapError(common.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, common.WrapError(common.ErrInvalidInput, "offset must be a non-negative integer"))
			return
		}
		offset = n
	}
	rows, err := s.invoices.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": rows, "count": len(rows)})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrServiceUnavailable, "invoice database not configured"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "malformed invoice id"))
		return
	}
	detail, err := s.invoices.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleInvoiceStats serves the persisted-invoice aggregates.
func (s *Server) handleInvoiceStats(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrServiceUnavailable, "invoice database not configured"))
		return
	}
	stats, err := s.invoices.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type exportInvoiceRequest struct {
	Filename string                `json:"filename"`
	Fields   *entity.InvoiceFields `json:"fields"`
}

// handleExportInvoice renders the posted fields as an XLSX download.
func (s *Server) handleExportInvoice(w http.ResponseWriter, r *http.Request) {
	var req exportInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "invalid JSON body"))
		return
	}
	if req.Fields == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "fields is required"))
		return
	}
	data, err := s.exporter.RenderInvoiceXLSX(req.Fields, req.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := req.Filename
	if name == "" {
		name = "factura"
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
