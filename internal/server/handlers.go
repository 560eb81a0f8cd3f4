package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/ingest"
	"github.com/vanshika/ringtrace/internal/repository"
	"github.com/vanshika/ringtrace/internal/service"
)

const (
	uploadField        = "file"
	runIDHeader        = "X-Detection-Run-ID"
	exportStatusHeader = "X-Export-Status"
	// multipartMemory is the part of an upload kept in memory before the
	// remainder spills to a temporary file.
	multipartMemory = 8 << 20
)

// Detector is the service contract required by the detection handlers.
type Detector interface {
	Detect(ctx context.Context, txs []domain.Transaction) (domain.DetectionResult, error)
	DetectAndExport(ctx context.Context, txs []domain.Transaction) (service.Outcome, error)
	LookupRun(ctx context.Context, runID string) (repository.Run, []domain.FraudRing, error)
	ExportEnabled() bool
}

// DetectionHandlers exposes the detection API.
type DetectionHandlers struct {
	logger         *slog.Logger
	detector       Detector
	maxUploadBytes int64
}

// NewDetectionHandlers constructs the handlers. Uploads larger than
// maxUploadBytes are rejected with 413.
func NewDetectionHandlers(logger *slog.Logger, detector Detector, maxUploadBytes int64) *DetectionHandlers {
	return &DetectionHandlers{
		logger:         logger,
		detector:       detector,
		maxUploadBytes: maxUploadBytes,
	}
}

type runResponse struct {
	RunID      string             `json:"run_id"`
	CreatedAt  string             `json:"created_at,omitempty"`
	Summary    domain.Summary     `json:"summary"`
	FraudRings []domain.FraudRing `json:"fraud_rings"`
}

func (h *DetectionHandlers) handleDetect(w http.ResponseWriter, r *http.Request) {
	export, err := parseBoolQuery(r, "export")
	if err != nil {
		writeError(w, http.StatusBadRequest, "export must be a boolean")
		return
	}
	if export && !h.detector.ExportEnabled() {
		writeError(w, http.StatusServiceUnavailable, "graph export is not available")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		switch {
		case isTooLarge(err):
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid multipart upload")
		}
		return
	}
	defer file.Close()

	txs, err := ingest.ParseCSV(file)
	if err != nil {
		var vErr *ingest.ValidationError
		switch {
		case errors.As(err, &vErr):
			writeError(w, http.StatusBadRequest, "CSV parsing error: "+vErr.Error())
		case errors.Is(err, domain.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, "no transactions found in CSV")
		default:
			h.logger.ErrorContext(r.Context(), "reading upload failed", "error", err)
			writeError(w, http.StatusBadRequest, "could not read upload")
		}
		return
	}

	if !export {
		result, err := h.detector.Detect(r.Context(), txs)
		if err != nil {
			h.writeDetectionError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
		return
	}

	outcome, err := h.detector.DetectAndExport(r.Context(), txs)
	var exportErr *domain.ExportError
	switch {
	case errors.As(err, &exportErr):
		// detection succeeded; only the graph write is missing
		w.Header().Set(runIDHeader, exportErr.RunID)
		w.Header().Set(exportStatusHeader, "failed")
	case err != nil:
		h.writeDetectionError(w, r, err)
		return
	default:
		w.Header().Set(runIDHeader, outcome.RunID)
		w.Header().Set(exportStatusHeader, "exported")
	}
	respondJSON(w, http.StatusOK, outcome.Result)
}

func (h *DetectionHandlers) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(chi.URLParam(r, "runID"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, rings, err := h.detector.LookupRun(r.Context(), runID)
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, domain.ErrGraphUnavailable):
		writeError(w, http.StatusServiceUnavailable, "graph database unavailable")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to fetch run", "error", err, "run_id", runID)
		writeError(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}

	resp := runResponse{
		RunID:      run.RunID,
		Summary:    run.Summary,
		FraudRings: rings,
	}
	if !run.CreatedAt.IsZero() {
		resp.CreatedAt = run.CreatedAt.UTC().Format(time.RFC3339)
	}
	if resp.FraudRings == nil {
		resp.FraudRings = []domain.FraudRing{}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *DetectionHandlers) writeDetectionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "no transactions found in CSV")
	case errors.Is(err, domain.ErrInputTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrGraphUnavailable):
		writeError(w, http.StatusServiceUnavailable, "graph export is not available")
	default:
		h.logger.ErrorContext(r.Context(), "detection failed", "error", err)
		writeError(w, http.StatusInternalServerError, "detection failed")
	}
}

func parseBoolQuery(r *http.Request, key string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}
