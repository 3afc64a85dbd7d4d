package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/factura-labs/invoice-pipeline/constants"
	"github.com/factura-labs/invoice-pipeline/internal/common"
)

// handleUpload accepts a multipart PDF, stores it under the upload dir,
// and schedules the pipeline. Responds 202 with the new job id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// The transport cap sits well above the pipeline size limit: an
	// oversized document must become a FAILED job with a recorded reason
	// (decided by ingestion), not a bare 400 at the HTTP edge.
	maxBytes := 2*s.maxSizeMB*(1<<20) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "missing file field"))
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !constants.IsAllowedExt(ext) {
		s.writeError(w, common.WrapError(common.ErrInvalidInput,
			fmt.Sprintf("unsupported file type %q, only PDF is accepted", ext)))
		return
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, err)
		return
	}
	dstPath := filepath.Join(s.uploadDir, uuid.New().String()+".pdf")
	dst, err := os.Create(dstPath)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		_ = os.Remove(dstPath)
		s.writeError(w, err)
		return
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		s.writeError(w, err)
		return
	}

	info, err := s.jobs.Submit(r.Context(), dstPath, header.Filename)
	if err != nil {
		_ = os.Remove(dstPath)
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, info)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	info, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.jobs.Result(r.Context(), jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, common.WrapError(common.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	list, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list, "count": len(list)})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.jobs.Delete(r.Context(), jobID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": jobID.String()})
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "jobID")
	jobID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.WrapError(common.ErrInvalidInput, "malformed job id")
	}
	return jobID, nil
}
