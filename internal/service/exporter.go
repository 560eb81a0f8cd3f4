package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vanshika/ringtrace/internal/detection"
	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/repository"
)

// RunStore is the storage contract required by the graph exporter.
type RunStore interface {
	EnsureSchema(ctx context.Context) error
	CreateRun(ctx context.Context, run repository.Run) error
	UpsertAccounts(ctx context.Context, runID string, accounts []repository.Account) error
	UpsertTransfers(ctx context.Context, runID string, transfers []repository.Transfer) error
	UpsertRings(ctx context.Context, runID string, rings []domain.FraudRing) error
	FetchRun(ctx context.Context, runID string) (repository.Run, error)
	FetchRunRings(ctx context.Context, runID string) ([]domain.FraudRing, error)
}

// ExportOptions tunes the exporter. Zero values fall back to defaults.
type ExportOptions struct {
	Workers         int
	BatchSize       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

const (
	defaultExportWorkers   = 4
	defaultExportBatchSize = 500
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 30 * time.Second
)

// GraphExporter writes detection runs to the graph database. Every store call
// passes through one circuit breaker so an unavailable database fails fast.
type GraphExporter struct {
	store     RunStore
	workers   int
	batchSize int
	breaker   *gobreaker.CircuitBreaker
	logger    *slog.Logger
}

// NewGraphExporter builds an exporter over store.
func NewGraphExporter(store RunStore, opts ExportOptions, logger *slog.Logger) *GraphExporter {
	if opts.Workers <= 0 {
		opts.Workers = defaultExportWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultExportBatchSize
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaultBreakerTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "graph_exporter")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "graph-export",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &GraphExporter{
		store:     store,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		breaker:   breaker,
		logger:    logger,
	}
}

// Export writes the run header, the scored accounts, the aggregated transfers
// and finally the rings with their memberships. Account and transfer batches
// are written concurrently; rings go last so their members already exist.
func (e *GraphExporter) Export(ctx context.Context, run repository.Run, a *detection.Analysis) error {
	if err := e.guard(func() error { return e.store.EnsureSchema(ctx) }); err != nil {
		return err
	}
	if err := e.guard(func() error { return e.store.CreateRun(ctx, run) }); err != nil {
		return err
	}

	accounts := accountsOf(a.Result)
	transfers := transfersOf(a.Graph)

	var batches []func() error
	for _, batch := range chunk(accounts, e.batchSize) {
		batches = append(batches, func() error {
			return e.store.UpsertAccounts(ctx, run.RunID, batch)
		})
	}
	for _, batch := range chunk(transfers, e.batchSize) {
		batches = append(batches, func() error {
			return e.store.UpsertTransfers(ctx, run.RunID, batch)
		})
	}
	err := runPool(ctx, e.workers, len(batches), func(idx int) error {
		return e.guard(batches[idx])
	})
	if err != nil {
		return err
	}

	if err := e.guard(func() error { return e.store.UpsertRings(ctx, run.RunID, a.Result.FraudRings) }); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "run exported",
		"run_id", run.RunID,
		"accounts", len(accounts),
		"transfers", len(transfers),
		"rings", len(a.Result.FraudRings),
	)
	return nil
}

// Lookup reads an exported run and its rings back.
func (e *GraphExporter) Lookup(ctx context.Context, runID string) (repository.Run, []domain.FraudRing, error) {
	var run repository.Run
	err := e.guard(func() error {
		var err error
		run, err = e.store.FetchRun(ctx, runID)
		if errors.Is(err, repository.ErrRunNotFound) {
			// a missing run says nothing about database health
			return nil
		}
		return err
	})
	if err != nil {
		return repository.Run{}, nil, err
	}
	if run.RunID == "" {
		return repository.Run{}, nil, repository.ErrRunNotFound
	}

	var rings []domain.FraudRing
	err = e.guard(func() error {
		var err error
		rings, err = e.store.FetchRunRings(ctx, runID)
		return err
	})
	if err != nil {
		return repository.Run{}, nil, err
	}
	return run, rings, nil
}

func (e *GraphExporter) guard(fn func() error) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrGraphUnavailable, err)
	}
	return err
}

func accountsOf(result domain.DetectionResult) []repository.Account {
	accounts := make([]repository.Account, 0, len(result.SuspiciousAccounts))
	for _, sa := range result.SuspiciousAccounts {
		account := repository.Account{
			AccountID:      sa.AccountID,
			SuspicionScore: sa.SuspicionScore,
			Patterns:       sa.DetectedPatterns,
		}
		if sa.RingID != nil {
			account.RingID = *sa.RingID
		}
		accounts = append(accounts, account)
	}
	return accounts
}

func transfersOf(g *detection.Graph) []repository.Transfer {
	edges := g.Edges()
	transfers := make([]repository.Transfer, 0, len(edges))
	for _, edge := range edges {
		t := repository.Transfer{
			From:   edge.From,
			To:     edge.To,
			Amount: edge.Amount,
			Count:  len(edge.Transactions),
		}
		for i, tx := range edge.Transactions {
			if i == 0 || tx.Timestamp.Before(t.FirstSeen) {
				t.FirstSeen = tx.Timestamp
			}
			if tx.Timestamp.After(t.LastSeen) {
				t.LastSeen = tx.Timestamp
			}
			t.TransactionIDs = append(t.TransactionIDs, tx.ID)
		}
		transfers = append(transfers, t)
	}
	return transfers
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		chunks = append(chunks, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
