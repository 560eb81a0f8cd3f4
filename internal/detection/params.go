package detection

import (
	"errors"
	"fmt"
)

// Grouping selects how overlapping cycles or chains are merged into rings.
type Grouping string

const (
	// GroupingUnionFind merges every overlapping path into one ring using a
	// disjoint set over accounts. Result does not depend on overlap order.
	GroupingUnionFind Grouping = "union_find"
	// GroupingFirstMatch attaches a path to the ring of its first already
	// tagged account and never merges existing rings.
	GroupingFirstMatch Grouping = "first_match"
)

// Params configures a detection run. It is a plain value; copies are safe.
type Params struct {
	CycleMinLength             int
	CycleMaxLength             int
	SmurfingThreshold          int
	SmurfingWindowHours        int
	ShellMinChainLength        int
	ShellMaxIntermediateDegree int
	Grouping                   Grouping
	// Parallel runs the three detectors concurrently. Output is identical.
	Parallel bool
	Scoring  ScoringParams
}

// ScoringParams holds the suspicion score weights and heuristics thresholds.
type ScoringParams struct {
	CycleWeight    float64
	ShellWeight    float64
	SmurfingWeight float64
	VelocityWeight float64
	MaxScore       float64

	VelocityMinTransactions int
	VelocityPerDay          float64

	PayrollMinTransactions int
	PayrollMinMonths       int
	PayrollMaxCV           float64
}

// DefaultParams returns the production detection settings.
func DefaultParams() Params {
	return Params{
		CycleMinLength:             3,
		CycleMaxLength:             5,
		SmurfingThreshold:          10,
		SmurfingWindowHours:        72,
		ShellMinChainLength:        3,
		ShellMaxIntermediateDegree: 3,
		Grouping:                   GroupingUnionFind,
		Scoring:                    DefaultScoringParams(),
	}
}

// DefaultScoringParams returns the standard weights: cycle 40, shell 25,
// smurfing 30, velocity 15, capped at 100.
func DefaultScoringParams() ScoringParams {
	return ScoringParams{
		CycleWeight:             40,
		ShellWeight:             25,
		SmurfingWeight:          30,
		VelocityWeight:          15,
		MaxScore:                100,
		VelocityMinTransactions: 50,
		VelocityPerDay:          50,
		PayrollMinTransactions:  10,
		PayrollMinMonths:        3,
		PayrollMaxCV:            0.3,
	}
}

// Validate rejects parameter combinations the detectors cannot honour.
func (p Params) Validate() error {
	var errs []error
	if p.CycleMinLength < 1 || p.CycleMaxLength < p.CycleMinLength {
		errs = append(errs, fmt.Errorf("invalid cycle length range [%d, %d]", p.CycleMinLength, p.CycleMaxLength))
	}
	if p.SmurfingThreshold <= 0 {
		errs = append(errs, fmt.Errorf("smurfing threshold must be positive, got %d", p.SmurfingThreshold))
	}
	if p.SmurfingWindowHours <= 0 {
		errs = append(errs, fmt.Errorf("smurfing window must be positive, got %dh", p.SmurfingWindowHours))
	}
	if p.ShellMinChainLength < 3 {
		errs = append(errs, fmt.Errorf("shell chain length must be at least 3, got %d", p.ShellMinChainLength))
	}
	if p.ShellMaxIntermediateDegree < 2 {
		errs = append(errs, fmt.Errorf("shell intermediate degree must be at least 2, got %d", p.ShellMaxIntermediateDegree))
	}
	switch p.Grouping {
	case GroupingUnionFind, GroupingFirstMatch:
	default:
		errs = append(errs, fmt.Errorf("unknown grouping strategy %q", p.Grouping))
	}
	if p.Scoring.MaxScore <= 0 || p.Scoring.MaxScore > 100 {
		errs = append(errs, fmt.Errorf("max score must be in (0, 100], got %v", p.Scoring.MaxScore))
	}
	// a credited label must raise the score
	weights := []struct {
		name  string
		value float64
	}{
		{"cycle", p.Scoring.CycleWeight},
		{"shell", p.Scoring.ShellWeight},
		{"smurfing", p.Scoring.SmurfingWeight},
		{"velocity", p.Scoring.VelocityWeight},
	}
	for _, w := range weights {
		if w.value <= 0 {
			errs = append(errs, fmt.Errorf("%s weight must be positive, got %v", w.name, w.value))
		}
	}
	return errors.Join(errs...)
}
