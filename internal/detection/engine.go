package detection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vanshika/ringtrace/internal/domain"
)

var tracer trace.Tracer = otel.Tracer("detection")

// Analysis carries every intermediate product of a run alongside its result.
type Analysis struct {
	Graph    *Graph
	Cycles   []Ring
	Smurfing map[string]SmurfingFlag
	// Shells are the shell rings as detected, before cycle priority.
	Shells []Ring
	Rings  Rings
	Scores Scores
	Result domain.DetectionResult
}

// Engine runs the detection pipeline. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	params Params
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewEngine validates params and returns an Engine. A nil logger discards output.
func NewEngine(params Params, logger *slog.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("detection params: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		params: params,
		logger: logger,
		nowFn:  time.Now,
	}, nil
}

// WithClock overrides the time provider used to measure processing time.
func (e *Engine) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		e.nowFn = nowFn
	}
}

// Detect runs the full pipeline and returns only the formatted result.
func (e *Engine) Detect(ctx context.Context, txs []domain.Transaction) (domain.DetectionResult, error) {
	analysis, err := e.Analyze(ctx, txs)
	if err != nil {
		return domain.DetectionResult{}, err
	}
	return analysis.Result, nil
}

// Analyze runs the full pipeline. It fails with domain.ErrEmptyInput before
// any stage when txs is empty, and with a *domain.DetectionError when any stage
// fails; no partial analysis is returned in either case.
func (e *Engine) Analyze(ctx context.Context, txs []domain.Transaction) (*Analysis, error) {
	if len(txs) == 0 {
		return nil, domain.ErrEmptyInput
	}

	ctx, span := tracer.Start(ctx, "Engine.Analyze")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions", len(txs)))

	start := e.nowFn()
	p := e.params
	a := &Analysis{}

	if err := e.runStage(ctx, "graph", func() {
		a.Graph = BuildGraph(txs)
	}); err != nil {
		return nil, err
	}

	detectors := []stage{
		{name: "cycles", run: func() {
			a.Cycles = DetectCycles(a.Graph, p.CycleMinLength, p.CycleMaxLength, p.Grouping)
		}},
		{name: "smurfing", run: func() {
			a.Smurfing = DetectSmurfing(a.Graph, txs, p.SmurfingThreshold, p.SmurfingWindowHours)
		}},
		{name: "shells", run: func() {
			a.Shells = DetectShellChains(a.Graph, p.ShellMinChainLength, p.ShellMaxIntermediateDegree, p.Grouping)
		}},
	}
	if err := e.runDetectors(ctx, detectors); err != nil {
		return nil, err
	}

	if err := e.runStage(ctx, "consolidate", func() {
		a.Rings = ConsolidateRings(a.Cycles, a.Shells)
	}); err != nil {
		return nil, err
	}
	if err := e.runStage(ctx, "score", func() {
		a.Scores = ScoreAccounts(txs, a.Rings, a.Smurfing, p.Scoring)
	}); err != nil {
		return nil, err
	}
	if err := e.runStage(ctx, "format", func() {
		a.Result = FormatResult(a.Graph, a.Rings, a.Scores, e.nowFn().Sub(start))
	}); err != nil {
		return nil, err
	}

	e.logger.DebugContext(ctx, "detection finished",
		"accounts", a.Graph.Len(),
		"cycle_rings", len(a.Rings.Cycles),
		"shell_rings", len(a.Rings.Shells),
		"smurfing_flags", len(a.Smurfing),
		"flagged", a.Result.Summary.SuspiciousAccountsFlagged,
	)
	return a, nil
}

type stage struct {
	name string
	run  func()
}

// runDetectors executes the detector stages. Each stage writes only its own
// field of the analysis, so concurrent execution yields the same output.
func (e *Engine) runDetectors(ctx context.Context, stages []stage) error {
	if !e.params.Parallel {
		for _, st := range stages {
			if err := e.runStage(ctx, st.name, st.run); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range stages {
		g.Go(func() error {
			return e.runStage(gctx, st.name, st.run)
		})
	}
	return g.Wait()
}

func (e *Engine) runStage(ctx context.Context, name string, run func()) (err error) {
	_, span := tracer.Start(ctx, "detection."+name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = &domain.DetectionError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			e.logger.ErrorContext(ctx, "detection stage failed", "stage", name, "error", err)
		}
	}()
	run()
	return nil
}
