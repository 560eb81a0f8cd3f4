package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vanshika/ringtrace/internal/domain"
	"github.com/vanshika/ringtrace/internal/graph"
)

func TestRepository_CreateRun(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{
		RunID:     "run-1",
		CreatedAt: created,
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     12,
			SuspiciousAccountsFlagged: 3,
			FraudRingsDetected:        1,
			ProcessingTimeSeconds:     0.04,
		},
	}

	if err := repo.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stmts := mem.WriteStatements()
	if len(stmts) != 1 {
		t.Fatalf("expected 1 write statement, got %d", len(stmts))
	}
	if stmts[0].Cypher != createRunCypher {
		t.Fatalf("unexpected query\nexpected:\n%s\ngot:\n%s", createRunCypher, stmts[0].Cypher)
	}
	if stmts[0].Params["createdAt"] != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected createdAt %v", stmts[0].Params["createdAt"])
	}
	props, ok := stmts[0].Params["props"].(map[string]any)
	if !ok {
		t.Fatalf("expected props map, got %T", stmts[0].Params["props"])
	}
	if props["fraudRingsDetected"] != 1 {
		t.Errorf("fraudRingsDetected mismatch: got %v", props["fraudRingsDetected"])
	}
}

func TestRepository_CreateRunRequiresID(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	if err := repo.CreateRun(context.Background(), Run{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestRepository_UpsertAccounts(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	accounts := []Account{
		{AccountID: "A", SuspicionScore: 40, Patterns: []string{"cycle_length_3"}, RingID: "RING_001"},
		{AccountID: "X", SuspicionScore: 30, Patterns: []string{"fan_in_10_72h"}},
	}
	if err := repo.UpsertAccounts(context.Background(), "run-1", accounts); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stmts := mem.WriteStatements()
	if len(stmts) != 1 || stmts[0].Cypher != upsertAccountsCypher {
		t.Fatalf("expected a single account upsert, got %+v", stmts)
	}
	rows, ok := stmts[0].Params["rows"].([]map[string]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", stmts[0].Params["rows"])
	}
	if rows[0]["ringId"] != "RING_001" || rows[1]["ringId"] != "" {
		t.Errorf("unexpected ring ids %v / %v", rows[0]["ringId"], rows[1]["ringId"])
	}
	if !reflect.DeepEqual(rows[1]["patterns"], []string{"fan_in_10_72h"}) {
		t.Errorf("unexpected patterns %v", rows[1]["patterns"])
	}
}

func TestRepository_UpsertSkipsEmptyBatches(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)
	ctx := context.Background()

	if err := repo.UpsertAccounts(ctx, "run-1", nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertTransfers(ctx, "run-1", nil); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertRings(ctx, "run-1", nil); err != nil {
		t.Fatal(err)
	}
	if n := len(mem.WriteTransactions()); n != 0 {
		t.Fatalf("expected no writes, got %d", n)
	}
}

func TestRepository_UpsertTransfers(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	first := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	transfers := []Transfer{{
		From:           "A",
		To:             "B",
		Amount:         1500,
		Count:          2,
		FirstSeen:      first,
		LastSeen:       first.Add(time.Hour),
		TransactionIDs: []string{"T1", "T2"},
	}}
	if err := repo.UpsertTransfers(context.Background(), "run-1", transfers); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	stmt := mem.WriteStatements()[0]
	if !strings.Contains(stmt.Cypher, "SENT_TO {runId: $runId}") {
		t.Errorf("transfer edge must be keyed by run:\n%s", stmt.Cypher)
	}
	row := stmt.Params["rows"].([]map[string]any)[0]
	if row["lastSeen"] != "2024-01-15T11:00:00Z" || row["count"] != 2 {
		t.Errorf("unexpected row %v", row)
	}
}

func TestRepository_UpsertRingsSingleTransaction(t *testing.T) {
	mem := graph.NewMemoryClient()
	repo := New(mem)

	rings := []domain.FraudRing{
		{RingID: "RING_001", MemberAccounts: []string{"A", "B", "C"}, PatternType: domain.PatternCycle, RiskScore: 40},
		{RingID: "RING_002", MemberAccounts: []string{"P", "Q", "R"}, PatternType: domain.PatternShell, RiskScore: 25},
	}
	if err := repo.UpsertRings(context.Background(), "run-1", rings); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	txs := mem.WriteTransactions()
	if len(txs) != 1 || len(txs[0]) != 2 {
		t.Fatalf("expected one transaction with two statements, got %+v", txs)
	}
	ringRows := txs[0][0].Params["rows"].([]map[string]any)
	if ringRows[1]["key"] != "run-1:RING_002" {
		t.Errorf("unexpected ring key %v", ringRows[1]["key"])
	}
	members := txs[0][1].Params["rows"].([]map[string]any)
	if len(members) != 6 {
		t.Fatalf("expected 6 member rows, got %d", len(members))
	}
	if members[3]["key"] != "run-1:RING_002" || members[3]["accountId"] != "P" {
		t.Errorf("unexpected member row %v", members[3])
	}
}

func TestRepository_WrapsClientErrors(t *testing.T) {
	boom := errors.New("boom")
	repo := New(graph.NewMemoryClient().WithError(boom))

	err := repo.CreateRun(context.Background(), Run{RunID: "run-1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
	if !strings.Contains(err.Error(), "run-1") {
		t.Errorf("expected run id in error, got %v", err)
	}
}

func TestRepository_FetchRun(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{{
		"runId":                     "run-1",
		"createdAt":                 "2024-03-01T12:00:00Z",
		"totalAccountsAnalyzed":     int64(12),
		"suspiciousAccountsFlagged": int64(3),
		"fraudRingsDetected":        int64(1),
		"processingTimeSeconds":     0.04,
	}}})
	repo := New(mem)

	run, err := repo.FetchRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := Run{
		RunID:     "run-1",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     12,
			SuspiciousAccountsFlagged: 3,
			FraudRingsDetected:        1,
			ProcessingTimeSeconds:     0.04,
		},
	}
	if !reflect.DeepEqual(run, want) {
		t.Fatalf("run mismatch\nwant %+v\ngot  %+v", want, run)
	}
	if calls := mem.ReadCalls(); calls[0].Params["runId"] != "run-1" {
		t.Errorf("unexpected params %v", calls[0].Params)
	}
}

func TestRepository_FetchRunNotFound(t *testing.T) {
	repo := New(graph.NewMemoryClient())

	if _, err := repo.FetchRun(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRepository_FetchRunRings(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{
		{"ringId": "RING_001", "patternType": "cycle", "riskScore": 40.0, "members": []any{"A", "B", "C"}},
		{"ringId": "RING_002", "patternType": "shell", "riskScore": int64(25), "members": []any{}},
	}})
	repo := New(mem)

	rings, err := repo.FetchRunRings(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []domain.FraudRing{
		{RingID: "RING_001", MemberAccounts: []string{"A", "B", "C"}, PatternType: "cycle", RiskScore: 40},
		{RingID: "RING_002", MemberAccounts: []string{}, PatternType: "shell", RiskScore: 25},
	}
	if !reflect.DeepEqual(rings, want) {
		t.Fatalf("rings mismatch\nwant %+v\ngot  %+v", want, rings)
	}
}

func TestRepository_EnsureSchema(t *testing.T) {
	mem := graph.NewMemoryClient()

	if err := New(mem).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	txs := mem.WriteTransactions()
	if len(txs) != 1 || len(txs[0]) != len(schemaCypher) {
		t.Fatalf("expected constraints in one transaction, got %+v", txs)
	}
	for _, stmt := range txs[0] {
		if !strings.Contains(stmt.Cypher, "IF NOT EXISTS") {
			t.Errorf("constraint must be idempotent: %s", stmt.Cypher)
		}
	}
}
