package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/graph"
)

// ErrRunNotFound indicates no run with the requested id was exported.
var ErrRunNotFound = errors.New("detection run not found")

// Run is the header node of an exported detection run.
type Run struct {
	RunID     string
	CreatedAt time.Time
	Summary   domain.Summary
}

// Account is a scored account as stored for one run. RingID is empty when the
// account belongs to no ring.
type Account struct {
	AccountID      string
	SuspicionScore float64
	Patterns       []string
	RingID         string
}

// Transfer aggregates every transaction from one account to another.
type Transfer struct {
	From           string
	To             string
	Amount         float64
	Count          int
	FirstSeen      time.Time
	LastSeen       time.Time
	TransactionIDs []string
}

// Repository encapsulates graph persistence operations.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// EnsureSchema creates the uniqueness constraints the MERGE statements rely on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := make([]graph.Statement, 0, len(schemaCypher))
	for _, cypher := range schemaCypher {
		stmts = append(stmts, graph.Statement{Cypher: cypher})
	}
	if _, err := r.client.ExecuteWrite(ctx, stmts...); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateRun writes the run header with its summary.
func (r *Repository) CreateRun(ctx context.Context, run Run) error {
	if run.RunID == "" {
		return errors.New("run id is required")
	}
	params := map[string]any{
		"runId":     run.RunID,
		"createdAt": formatTime(run.CreatedAt),
		"props": map[string]any{
			"totalAccountsAnalyzed":     run.Summary.TotalAccountsAnalyzed,
			"suspiciousAccountsFlagged": run.Summary.SuspiciousAccountsFlagged,
			"fraudRingsDetected":        run.Summary.FraudRingsDetected,
			"processingTimeSeconds":     run.Summary.ProcessingTimeSeconds,
		},
	}
	if _, err := r.client.ExecuteWrite(ctx, graph.Statement{Cypher: createRunCypher, Params: params}); err != nil {
		return fmt.Errorf("create run %s: %w", run.RunID, err)
	}
	return nil
}

// UpsertAccounts merges account nodes and links them to the run with their
// score for that run.
func (r *Repository) UpsertAccounts(ctx context.Context, runID string, accounts []Account) error {
	if len(accounts) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, map[string]any{
			"accountId": a.AccountID,
			"score":     a.SuspicionScore,
			"patterns":  append([]string{}, a.Patterns...),
			"ringId":    a.RingID,
		})
	}
	params := map[string]any{"runId": runID, "rows": rows}
	if _, err := r.client.ExecuteWrite(ctx, graph.Statement{Cypher: upsertAccountsCypher, Params: params}); err != nil {
		return fmt.Errorf("upsert %d accounts for run %s: %w", len(accounts), runID, err)
	}
	return nil
}

// UpsertTransfers merges one SENT_TO relationship per ordered account pair and run.
func (r *Repository) UpsertTransfers(ctx context.Context, runID string, transfers []Transfer) error {
	if len(transfers) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(transfers))
	for _, t := range transfers {
		rows = append(rows, map[string]any{
			"from":           t.From,
			"to":             t.To,
			"amount":         t.Amount,
			"count":          t.Count,
			"firstSeen":      formatTime(t.FirstSeen),
			"lastSeen":       formatTime(t.LastSeen),
			"transactionIds": append([]string{}, t.TransactionIDs...),
		})
	}
	params := map[string]any{"runId": runID, "rows": rows}
	if _, err := r.client.ExecuteWrite(ctx, graph.Statement{Cypher: upsertTransfersCypher, Params: params}); err != nil {
		return fmt.Errorf("upsert %d transfers for run %s: %w", len(transfers), runID, err)
	}
	return nil
}

// UpsertRings writes ring nodes and their MEMBER_OF edges in one transaction.
// Ring nodes are keyed by run and ring id since ring ids restart every run.
func (r *Repository) UpsertRings(ctx context.Context, runID string, rings []domain.FraudRing) error {
	if len(rings) == 0 {
		return nil
	}
	ringRows := make([]map[string]any, 0, len(rings))
	var memberRows []map[string]any
	for _, ring := range rings {
		key := ringKey(runID, ring.RingID)
		ringRows = append(ringRows, map[string]any{
			"key":         key,
			"ringId":      ring.RingID,
			"patternType": ring.PatternType,
			"riskScore":   ring.RiskScore,
			"size":        len(ring.MemberAccounts),
		})
		for _, member := range ring.MemberAccounts {
			memberRows = append(memberRows, map[string]any{"key": key, "accountId": member})
		}
	}

	_, err := r.client.ExecuteWrite(ctx,
		graph.Statement{Cypher: upsertRingsCypher, Params: map[string]any{"runId": runID, "rows": ringRows}},
		graph.Statement{Cypher: linkRingMembersCypher, Params: map[string]any{"rows": memberRows}},
	)
	if err != nil {
		return fmt.Errorf("upsert %d rings for run %s: %w", len(rings), runID, err)
	}
	return nil
}

// FetchRun returns the header of an exported run.
func (r *Repository) FetchRun(ctx context.Context, runID string) (Run, error) {
	res, err := r.client.ExecuteRead(ctx, fetchRunCypher, map[string]any{"runId": runID})
	if err != nil {
		return Run{}, fmt.Errorf("fetch run %s: %w", runID, err)
	}
	if len(res.Records) == 0 {
		return Run{}, ErrRunNotFound
	}
	rec := res.Records[0]
	run := Run{
		RunID: rec.String("runId"),
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     int(toInt64(rec["totalAccountsAnalyzed"])),
			SuspiciousAccountsFlagged: int(toInt64(rec["suspiciousAccountsFlagged"])),
			FraudRingsDetected:        int(toInt64(rec["fraudRingsDetected"])),
			ProcessingTimeSeconds:     toFloat64(rec["processingTimeSeconds"]),
		},
	}
	if created := toTimePtr(rec["createdAt"]); created != nil {
		run.CreatedAt = *created
	}
	return run, nil
}

// FetchRunRings reads the rings of a run back, ordered like the detection
// result: risk score descending, then ring id.
func (r *Repository) FetchRunRings(ctx context.Context, runID string) ([]domain.FraudRing, error) {
	res, err := r.client.ExecuteRead(ctx, fetchRunRingsCypher, map[string]any{"runId": runID})
	if err != nil {
		return nil, fmt.Errorf("fetch rings of run %s: %w", runID, err)
	}
	rings := make([]domain.FraudRing, 0, len(res.Records))
	for _, rec := range res.Records {
		rings = append(rings, domain.FraudRing{
			RingID:         rec.String("ringId"),
			MemberAccounts: toStrings(rec["members"]),
			PatternType:    rec.String("patternType"),
			RiskScore:      toFloat64(rec["riskScore"]),
		})
	}
	return rings, nil
}

func ringKey(runID, ringID string) string {
	return runID + ":" + ringID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toStrings(val any) []string {
	switch v := val.(type) {
	case []string:
		return append([]string{}, v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
	}
	return nil
}
