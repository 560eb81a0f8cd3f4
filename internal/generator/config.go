package generator

import "time"

// Config drives the synthetic transaction generator. Planted pattern counts
// may be zero; noise volume falls back to the defaults when non-positive.
type Config struct {
	NumAccounts       int
	NumTransactions   int
	Cycles            int
	FanIns            int
	FanOuts           int
	ShellChains       int
	SmurfCounterparts int
	Payroll           bool
	Start             time.Time
	Days              int
	Seed              int64
}

// DefaultConfig returns a small dataset exercising every detector once or twice.
func DefaultConfig() Config {
	return Config{
		NumAccounts:       2000,
		NumTransactions:   3000,
		Cycles:            3,
		FanIns:            2,
		FanOuts:           2,
		ShellChains:       2,
		SmurfCounterparts: 12,
		Payroll:           true,
		Start:             time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:              90,
		Seed:              42,
	}
}
