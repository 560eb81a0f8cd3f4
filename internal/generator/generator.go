package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ringtrace/internal/domain"
)

// Pattern names reported in Planted.
const (
	PlantedCycle   = "cycle"
	PlantedFanIn   = "fan_in"
	PlantedFanOut  = "fan_out"
	PlantedShell   = "shell"
	PlantedPayroll = "payroll"
)

// Planted records one injected pattern. For smurfing and payroll the hub
// account comes first in Accounts.
type Planted struct {
	Pattern  string   `json:"pattern"`
	Accounts []string `json:"accounts"`
}

// Dataset contains the generated transactions ordered by timestamp, plus the
// ground truth of what was planted.
type Dataset struct {
	Transactions []domain.Transaction `json:"transactions"`
	Planted      []Planted            `json:"planted"`
}

// Generator produces synthetic transfer histories with known laundering shapes
// hidden in random background traffic.
type Generator struct {
	cfg  Config
	rand *rand.Rand
	txs  []domain.Transaction
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	if cfg.NumAccounts <= 1 {
		cfg.NumAccounts = DefaultConfig().NumAccounts
	}
	if cfg.NumTransactions < 0 {
		cfg.NumTransactions = DefaultConfig().NumTransactions
	}
	if cfg.SmurfCounterparts <= 0 {
		cfg.SmurfCounterparts = DefaultConfig().SmurfCounterparts
	}
	if cfg.Start.IsZero() {
		cfg.Start = DefaultConfig().Start
	}
	if cfg.Days <= 0 {
		cfg.Days = DefaultConfig().Days
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:  cfg,
		rand: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Generate synthesises the dataset. It respects context cancellation. Planted
// accounts use their own id namespaces and never trade with noise accounts.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	g.txs = make([]domain.Transaction, 0, g.cfg.NumTransactions)
	var planted []Planted

	for i := 0; i < g.cfg.NumTransactions; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Dataset{}, err
			}
		}
		sender := g.rand.Intn(g.cfg.NumAccounts)
		receiver := g.rand.Intn(g.cfg.NumAccounts)
		if sender == receiver {
			receiver = (receiver + 1) % g.cfg.NumAccounts
		}
		g.emit(noiseAccount(sender), noiseAccount(receiver), g.randomAmount(10, 5000), g.randomTime())
	}

	for i := 0; i < g.cfg.Cycles; i++ {
		planted = append(planted, g.plantCycle(i))
	}
	for i := 0; i < g.cfg.FanIns; i++ {
		planted = append(planted, g.plantSmurfing(PlantedFanIn, i))
	}
	for i := 0; i < g.cfg.FanOuts; i++ {
		planted = append(planted, g.plantSmurfing(PlantedFanOut, i))
	}
	for i := 0; i < g.cfg.ShellChains; i++ {
		planted = append(planted, g.plantShellChain(i))
	}
	if g.cfg.Payroll {
		planted = append(planted, g.plantPayroll())
	}
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	sort.SliceStable(g.txs, func(i, j int) bool {
		return g.txs[i].Timestamp.Before(g.txs[j].Timestamp)
	})
	for i := range g.txs {
		g.txs[i].ID = fmt.Sprintf("TX-%07d", i+1)
	}

	return Dataset{Transactions: g.txs, Planted: planted}, nil
}

// plantCycle routes a shrinking amount around 3 to 5 accounts within a day.
func (g *Generator) plantCycle(n int) Planted {
	length := 3 + g.rand.Intn(3)
	accounts := make([]string, length)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("CYC-%02d-%d", n+1, i+1)
	}

	amount := g.randomAmount(5000, 20000)
	at := g.randomTime()
	for i, from := range accounts {
		to := accounts[(i+1)%length]
		g.emit(from, to, amount, at)
		amount = amount.Mul(decimal.NewFromFloat(0.97)).Round(2)
		at = at.Add(time.Duration(30+g.rand.Intn(180)) * time.Minute)
	}
	return Planted{Pattern: PlantedCycle, Accounts: accounts}
}

// plantSmurfing scatters small transfers between one hub and many distinct
// counterparties inside a 24 hour burst.
func (g *Generator) plantSmurfing(pattern string, n int) Planted {
	prefix := "FIN"
	if pattern == PlantedFanOut {
		prefix = "FOUT"
	}
	hub := fmt.Sprintf("%s-%02d-HUB", prefix, n+1)
	accounts := []string{hub}

	start := g.randomTime()
	for i := 0; i < g.cfg.SmurfCounterparts; i++ {
		peer := fmt.Sprintf("%s-%02d-%02d", prefix, n+1, i+1)
		accounts = append(accounts, peer)
		at := start.Add(time.Duration(g.rand.Intn(24*60)) * time.Minute)
		amount := g.randomAmount(900, 9900)
		if pattern == PlantedFanIn {
			g.emit(peer, hub, amount, at)
		} else {
			g.emit(hub, peer, amount, at)
		}
	}
	return Planted{Pattern: pattern, Accounts: accounts}
}

// plantShellChain passes funds through two or three pass-through accounts that
// see no other traffic.
func (g *Generator) plantShellChain(n int) Planted {
	length := 4 + g.rand.Intn(2)
	accounts := make([]string, length)
	for i := range accounts {
		accounts[i] = fmt.Sprintf("SHL-%02d-%d", n+1, i+1)
	}

	amount := g.randomAmount(20000, 50000)
	at := g.randomTime()
	for i := 0; i+1 < length; i++ {
		g.emit(accounts[i], accounts[i+1], amount, at)
		amount = amount.Sub(g.randomAmount(50, 500))
		at = at.Add(time.Duration(1+g.rand.Intn(12)) * time.Hour)
	}
	return Planted{Pattern: PlantedShell, Accounts: accounts}
}

// plantPayroll pays a fixed staff once a month. Payments are staggered so no
// 72 hour window reaches the smurfing threshold.
func (g *Generator) plantPayroll() Planted {
	const staff = 8
	employer := "PAY-EMPLOYER"
	accounts := []string{employer}
	salaries := make([]decimal.Decimal, staff)
	for i := range salaries {
		accounts = append(accounts, fmt.Sprintf("PAY-EMP-%02d", i+1))
		salaries[i] = g.randomAmount(3000, 6000)
	}

	months := g.cfg.Days / 30
	if months < 3 {
		months = 3
	}
	for m := 0; m < months; m++ {
		payday := g.cfg.Start.AddDate(0, m, 0)
		for i, salary := range salaries {
			at := payday.Add(time.Duration(i*4) * 24 * time.Hour / 2)
			g.emit(employer, accounts[i+1], salary, at)
		}
	}
	return Planted{Pattern: PlantedPayroll, Accounts: accounts}
}

func (g *Generator) emit(from, to string, amount decimal.Decimal, at time.Time) {
	g.txs = append(g.txs, domain.Transaction{
		SenderID:   from,
		ReceiverID: to,
		Amount:     amount.InexactFloat64(),
		Timestamp:  at.UTC().Truncate(time.Second),
	})
}

// randomAmount returns a value in [lo, hi) with cent precision.
func (g *Generator) randomAmount(lo, hi int64) decimal.Decimal {
	cents := lo*100 + g.rand.Int63n((hi-lo)*100)
	return decimal.New(cents, -2)
}

func (g *Generator) randomTime() time.Time {
	span := int64(g.cfg.Days) * int64(24*time.Hour/time.Second)
	return g.cfg.Start.Add(time.Duration(g.rand.Int63n(span)) * time.Second)
}

func noiseAccount(i int) string {
	return fmt.Sprintf("ACC-%05d", i+1)
}
