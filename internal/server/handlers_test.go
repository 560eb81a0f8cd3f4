package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanshika/ringtrace/internal/detection"
	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/repository"
	"github.com/vanshika/ringtrace/internal/service"
)

const cycleCSV = `transaction_id,sender_id,receiver_id,amount,timestamp
T1,A,B,1000.00,2024-01-15 10:00:00
T2,B,C,950.00,2024-01-15 11:00:00
T3,C,A,900.00,2024-01-15 12:00:00
`

type stubDetector struct {
	result     domain.DetectionResult
	outcome    service.Outcome
	detectErr  error
	exportErr  error
	run        repository.Run
	rings      []domain.FraudRing
	lookupErr  error
	exportable bool

	received []domain.Transaction
}

func (s *stubDetector) Detect(_ context.Context, txs []domain.Transaction) (domain.DetectionResult, error) {
	s.received = txs
	return s.result, s.detectErr
}

func (s *stubDetector) DetectAndExport(_ context.Context, txs []domain.Transaction) (service.Outcome, error) {
	s.received = txs
	return s.outcome, s.exportErr
}

func (s *stubDetector) LookupRun(_ context.Context, _ string) (repository.Run, []domain.FraudRing, error) {
	return s.run, s.rings, s.lookupErr
}

func (s *stubDetector) ExportEnabled() bool { return s.exportable }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(det Detector, maxUpload int64) http.Handler {
	logger := discardLogger()
	return NewRouter(logger, RouterDependencies{
		Detection: NewDetectionHandlers(logger, det, maxUpload),
	})
}

func uploadRequest(t *testing.T, target, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "transactions.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return payload["error"]
}

func TestHandleDetectReturnsResult(t *testing.T) {
	ringID := "RING_001"
	det := &stubDetector{
		result: domain.DetectionResult{
			SuspiciousAccounts: []domain.SuspiciousAccount{
				{AccountID: "A", SuspicionScore: 40, DetectedPatterns: []string{"cycle_length_3"}, RingID: &ringID},
			},
			FraudRings: []domain.FraudRing{
				{RingID: ringID, MemberAccounts: []string{"A", "B", "C"}, PatternType: domain.PatternCycle, RiskScore: 40},
			},
			Summary: domain.Summary{TotalAccountsAnalyzed: 3, SuspiciousAccountsFlagged: 1, FraudRingsDetected: 1},
		},
	}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect", cycleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(det.received) != 3 {
		t.Fatalf("expected 3 parsed transactions, got %d", len(det.received))
	}
	if got := rec.Header().Get(exportStatusHeader); got != "" {
		t.Fatalf("expected no export status header, got %q", got)
	}

	var payload domain.DetectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.FraudRings) != 1 || payload.FraudRings[0].RingID != ringID {
		t.Fatalf("unexpected rings: %+v", payload.FraudRings)
	}
	if payload.SuspiciousAccounts[0].RingID == nil || *payload.SuspiciousAccounts[0].RingID != ringID {
		t.Fatalf("unexpected ring id on account: %+v", payload.SuspiciousAccounts[0])
	}
}

func TestHandleDetectValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing column",
			content: "transaction_id,sender_id,amount,timestamp\nT1,A,10,2024-01-15 10:00:00\n",
			want:    "missing required columns: receiver_id",
		},
		{
			name:    "bad amount",
			content: "transaction_id,sender_id,receiver_id,amount,timestamp\nT1,A,B,abc,2024-01-15 10:00:00\n",
			want:    "row 2",
		},
		{
			name:    "header only",
			content: "transaction_id,sender_id,receiver_id,amount,timestamp\n",
			want:    "no transactions found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			det := &stubDetector{}
			router := newTestRouter(det, 1<<20)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "/api/detect", tc.content))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if msg := decodeError(t, rec); !strings.Contains(msg, tc.want) {
				t.Fatalf("expected error containing %q, got %q", tc.want, msg)
			}
			if det.received != nil {
				t.Fatalf("detector should not run on invalid input")
			}
		})
	}
}

func TestHandleDetectMissingFile(t *testing.T) {
	router := newTestRouter(&stubDetector{}, 1<<20)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("other", "value")
	_ = writer.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/detect", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleDetectRejectsOversizedUpload(t *testing.T) {
	router := newTestRouter(&stubDetector{}, 64)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect", cycleCSV+strings.Repeat("T9,A,B,1.00,2024-01-15 10:00:00\n", 20)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestHandleDetectMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "too many accounts", err: domain.ErrInputTooLarge, want: http.StatusRequestEntityTooLarge},
		{name: "internal", err: &domain.DetectionError{Stage: "cycles", Err: errors.New("boom")}, want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubDetector{detectErr: tc.err}, 1<<20)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, uploadRequest(t, "/api/detect", cycleCSV))

			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusInternalServerError {
				if msg := decodeError(t, rec); strings.Contains(msg, "boom") {
					t.Fatalf("internal error details leaked: %q", msg)
				}
			}
		})
	}
}

func TestHandleDetectWithExport(t *testing.T) {
	det := &stubDetector{
		exportable: true,
		outcome: service.Outcome{
			RunID:  "run-1",
			Result: domain.DetectionResult{Summary: domain.Summary{TotalAccountsAnalyzed: 3}},
		},
	}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=true", cycleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(runIDHeader); got != "run-1" {
		t.Fatalf("expected run id header run-1, got %q", got)
	}
	if got := rec.Header().Get(exportStatusHeader); got != "exported" {
		t.Fatalf("expected export status exported, got %q", got)
	}
}

func TestHandleDetectExportFailureStillReturnsResult(t *testing.T) {
	det := &stubDetector{
		exportable: true,
		outcome: service.Outcome{
			RunID:  "run-2",
			Result: domain.DetectionResult{Summary: domain.Summary{TotalAccountsAnalyzed: 3}},
		},
		exportErr: &domain.ExportError{RunID: "run-2", Err: errors.New("neo4j down")},
	}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=1", cycleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(exportStatusHeader); got != "failed" {
		t.Fatalf("expected export status failed, got %q", got)
	}

	var payload domain.DetectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Summary.TotalAccountsAnalyzed != 3 {
		t.Fatalf("expected result to be returned, got %+v", payload.Summary)
	}
}

func TestHandleDetectExportDisabled(t *testing.T) {
	det := &stubDetector{exportable: false}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=true", cycleCSV))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if det.received != nil {
		t.Fatalf("upload should not be parsed when export is disabled")
	}
}

func TestHandleDetectExportBreakerOpen(t *testing.T) {
	det := &stubDetector{exportable: true, exportErr: domain.ErrGraphUnavailable}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=true", cycleCSV))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestHandleDetectRejectsBadExportFlag(t *testing.T) {
	router := newTestRouter(&stubDetector{}, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=maybe", cycleCSV))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleRun(t *testing.T) {
	det := &stubDetector{
		run: repository.Run{
			RunID:     "run-1",
			CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			Summary:   domain.Summary{FraudRingsDetected: 1},
		},
		rings: []domain.FraudRing{{RingID: "RING_001", MemberAccounts: []string{"A", "B", "C"}, PatternType: domain.PatternCycle, RiskScore: 40}},
	}
	router := newTestRouter(det, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var payload runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.RunID != "run-1" || payload.CreatedAt != "2024-01-15T10:00:00Z" {
		t.Fatalf("unexpected run payload: %+v", payload)
	}
	if len(payload.FraudRings) != 1 {
		t.Fatalf("expected one ring, got %d", len(payload.FraudRings))
	}
}

func TestHandleRunErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: repository.ErrRunNotFound, want: http.StatusNotFound},
		{name: "unavailable", err: domain.ErrGraphUnavailable, want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubDetector{lookupErr: tc.err}, 1<<20)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/run-9", nil))

			if rec.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

type failingProbe struct{ err error }

func (f failingProbe) Probe(context.Context) error { return f.err }

func TestHealthEndpoints(t *testing.T) {
	logger := discardLogger()

	healthy := NewRouter(logger, RouterDependencies{Health: failingProbe{}})
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected /api/health response: %d %s", rec.Code, rec.Body.String())
	}

	degraded := NewRouter(logger, RouterDependencies{Health: failingProbe{err: errors.New("neo4j unreachable")}})
	rec = httptest.NewRecorder()
	degraded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "degraded") {
		t.Fatalf("expected degraded status, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(discardLogger(), RouterDependencies{
		AllowedOrigins: []string{"http://localhost:3000"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/detect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("expected allowed origin header, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), runIDHeader) {
		t.Fatalf("expected run id header to be exposed")
	}
}

func TestDetectEndToEnd(t *testing.T) {
	engine, err := detection.NewEngine(detection.DefaultParams(), discardLogger())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	svc := service.NewDetectionService(engine, discardLogger())
	router := newTestRouter(svc, 1<<20)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect", cycleCSV))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload domain.DetectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.FraudRings) != 1 || payload.FraudRings[0].PatternType != domain.PatternCycle {
		t.Fatalf("expected one cycle ring, got %+v", payload.FraudRings)
	}
	if len(payload.SuspiciousAccounts) != 3 {
		t.Fatalf("expected three suspicious accounts, got %d", len(payload.SuspiciousAccounts))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, uploadRequest(t, "/api/detect?export=true", cycleCSV))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without exporter, got %d", rec.Code)
	}
}
