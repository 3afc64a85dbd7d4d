package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/factura-labs/invoice-pipeline/internal/common"
	"github.com/factura-labs/invoice-pipeline/internal/repository"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps service-layer errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var failed *common.JobFailedError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrJobNotFound), errors.Is(err, repository.ErrInvoiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrJobNotReady):
		status = http.StatusConflict
	case errors.As(err, &failed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, common.ErrInvalidInput):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
