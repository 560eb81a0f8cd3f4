package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vanshika/ringtrace/internal/detection"
	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/observability"
	"github.com/vanshika/ringtrace/internal/repository"
)

var tracer = otel.Tracer("service/detection")

// Analyzer runs the detection pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, txs []domain.Transaction) (*detection.Analysis, error)
}

// Exporter persists detection runs and reads them back.
type Exporter interface {
	Export(ctx context.Context, run repository.Run, a *detection.Analysis) error
	Lookup(ctx context.Context, runID string) (repository.Run, []domain.FraudRing, error)
}

// Outcome is the result of a run together with the id it was exported under.
type Outcome struct {
	RunID  string
	Result domain.DetectionResult
}

// DetectionService bounds the input, runs the engine, records metrics and
// optionally exports the run.
type DetectionService struct {
	analyzer    Analyzer
	exporter    Exporter
	metrics     *observability.Metrics
	logger      *slog.Logger
	maxAccounts int
	nowFn       func() time.Time
	newRunID    func() string
}

// Option customises a DetectionService.
type Option func(*DetectionService)

// WithExporter enables graph exports.
func WithExporter(e Exporter) Option {
	return func(s *DetectionService) { s.exporter = e }
}

// WithMetrics records run outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *DetectionService) { s.metrics = m }
}

// WithMaxAccounts rejects batches touching more than n distinct accounts.
// Zero disables the bound.
func WithMaxAccounts(n int) Option {
	return func(s *DetectionService) { s.maxAccounts = n }
}

// WithClock overrides the time source used for run timestamps and durations.
func WithClock(nowFn func() time.Time) Option {
	return func(s *DetectionService) { s.nowFn = nowFn }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(newRunID func() string) Option {
	return func(s *DetectionService) { s.newRunID = newRunID }
}

// NewDetectionService constructs the service around analyzer.
func NewDetectionService(analyzer Analyzer, logger *slog.Logger, opts ...Option) *DetectionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DetectionService{
		analyzer: analyzer,
		logger:   logger.With("component", "detection_service"),
		nowFn:    time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportEnabled reports whether runs can be exported.
func (s *DetectionService) ExportEnabled() bool {
	return s.exporter != nil
}

// Detect analyses txs and returns the formatted result.
func (s *DetectionService) Detect(ctx context.Context, txs []domain.Transaction) (domain.DetectionResult, error) {
	analysis, err := s.analyze(ctx, txs)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	return analysis.Result, nil
}

// DetectAndExport analyses txs and exports the run under a fresh id. When only
// the export fails, the outcome still carries the result and the error is a
// *domain.ExportError.
func (s *DetectionService) DetectAndExport(ctx context.Context, txs []domain.Transaction) (Outcome, error) {
	if s.exporter == nil {
		return Outcome{}, domain.ErrGraphUnavailable
	}
	analysis, err := s.analyze(ctx, txs)
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{RunID: s.newRunID(), Result: analysis.Result}
	run := repository.Run{
		RunID:     outcome.RunID,
		CreatedAt: s.nowFn().UTC(),
		Summary:   analysis.Result.Summary,
	}

	ctx, span := tracer.Start(ctx, "DetectionService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", run.RunID))

	start := s.nowFn()
	if err := s.exporter.Export(ctx, run, analysis); err != nil {
		s.recordExport(observability.StatusFailed, s.nowFn().Sub(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		s.logger.ErrorContext(ctx, "graph export failed", "run_id", run.RunID, "error", err)
		return outcome, &domain.ExportError{RunID: run.RunID, Err: err}
	}
	s.recordExport(observability.StatusSuccess, s.nowFn().Sub(start))
	return outcome, nil
}

// LookupRun reads an exported run and its rings.
func (s *DetectionService) LookupRun(ctx context.Context, runID string) (repository.Run, []domain.FraudRing, error) {
	if s.exporter == nil {
		return repository.Run{}, nil, domain.ErrGraphUnavailable
	}
	return s.exporter.Lookup(ctx, runID)
}

func (s *DetectionService) analyze(ctx context.Context, txs []domain.Transaction) (*detection.Analysis, error) {
	ctx, span := tracer.Start(ctx, "DetectionService.Detect")
	defer span.End()

	if len(txs) == 0 {
		s.recordRun(observability.StatusRejected, 0, 0)
		return nil, domain.ErrEmptyInput
	}
	if s.maxAccounts > 0 {
		if n := countAccounts(txs); n > s.maxAccounts {
			s.recordRun(observability.StatusRejected, len(txs), 0)
			return nil, fmt.Errorf("%w: %d accounts, limit %d", domain.ErrInputTooLarge, n, s.maxAccounts)
		}
	}

	start := s.nowFn()
	analysis, err := s.analyzer.Analyze(ctx, txs)
	elapsed := s.nowFn().Sub(start)
	if err != nil {
		status := observability.StatusFailed
		if errors.Is(err, domain.ErrEmptyInput) {
			status = observability.StatusRejected
		}
		s.recordRun(status, len(txs), elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "detection failed")
		return nil, err
	}

	s.recordRun(observability.StatusSuccess, len(txs), elapsed)
	if s.metrics != nil {
		byPattern := make(map[string]int)
		for _, ring := range analysis.Result.FraudRings {
			byPattern[ring.PatternType]++
		}
		s.metrics.RecordFindings(byPattern, analysis.Result.Summary.SuspiciousAccountsFlagged)
	}

	summary := analysis.Result.Summary
	s.logger.InfoContext(ctx, "detection completed",
		"transactions", len(txs),
		"accounts", summary.TotalAccountsAnalyzed,
		"flagged", summary.SuspiciousAccountsFlagged,
		"rings", summary.FraudRingsDetected,
		"duration", elapsed.String(),
	)
	return analysis, nil
}

func (s *DetectionService) recordRun(status string, transactions int, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordRun(status, transactions, d)
	}
}

func (s *DetectionService) recordExport(status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordExport(status, d)
	}
}

func countAccounts(txs []domain.Transaction) int {
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		seen[tx.SenderID] = struct{}{}
		seen[tx.ReceiverID] = struct{}{}
	}
	return len(seen)
}
