package detection

import (
	"math"
	"sort"
	"strings"

	"github.com/vanshika/ringtrace/internal/domain"
)

// HighVelocityLabel marks accounts credited with the velocity contribution.
const HighVelocityLabel = "high_velocity"

// AccountScore is the clamped suspicion score of one account together with the
// distinct labels that produced it.
type AccountScore struct {
	Score    float64
	Patterns []string
}

// Scores maps account ids to their score. Accounts without any pattern are absent.
type Scores map[string]AccountScore

// Score returns the score of account, zero when it carries no pattern.
func (s Scores) Score(account string) float64 {
	return s[account].Score
}

type patternFamily int

const (
	familyNone patternFamily = iota
	familyCycle
	familyShell
	familySmurfing
	familyVelocity
)

func familyOf(label string) patternFamily {
	switch {
	case strings.HasPrefix(label, "cycle_length_"):
		return familyCycle
	case strings.HasPrefix(label, "layered_shell_"):
		return familyShell
	case strings.HasPrefix(label, FanIn+"_"), strings.HasPrefix(label, FanOut+"_"):
		return familySmurfing
	case label == HighVelocityLabel:
		return familyVelocity
	default:
		return familyNone
	}
}

func (p ScoringParams) weight(f patternFamily) float64 {
	switch f {
	case familyCycle:
		return p.CycleWeight
	case familyShell:
		return p.ShellWeight
	case familySmurfing:
		return p.SmurfingWeight
	case familyVelocity:
		return p.VelocityWeight
	default:
		return 0
	}
}

// ScoreAccounts collects the distinct pattern labels of every account and adds
// each pattern family's weight once. Shell rings must already be consolidated.
// The velocity contribution is withheld from payroll-like accounts.
func ScoreAccounts(txs []domain.Transaction, rings Rings, smurfing map[string]SmurfingFlag, p ScoringParams) Scores {
	labels := make(map[string]map[string]struct{})
	add := func(account, label string) {
		set, ok := labels[account]
		if !ok {
			set = make(map[string]struct{})
			labels[account] = set
		}
		set[label] = struct{}{}
	}

	for _, ring := range rings.Cycles {
		for _, cycle := range ring.Paths {
			for _, account := range cycle {
				add(account, CycleLabel(len(cycle)))
			}
		}
	}
	for account, flag := range smurfing {
		add(account, flag.Label)
	}
	for _, ring := range rings.Shells {
		for _, chain := range ring.Paths {
			for _, account := range chain {
				add(account, ShellLabel(len(chain)))
			}
		}
	}

	for account, pooled := range poolByAccount(txs) {
		if isHighVelocity(pooled, p) && !isPayrollLike(pooled, p) {
			add(account, HighVelocityLabel)
		}
	}

	scores := make(Scores, len(labels))
	for account, set := range labels {
		credited := make(map[patternFamily]struct{})
		patterns := make([]string, 0, len(set))
		score := 0.0
		for label := range set {
			patterns = append(patterns, label)
			f := familyOf(label)
			if _, done := credited[f]; done {
				continue
			}
			credited[f] = struct{}{}
			score += p.weight(f)
		}
		sort.Strings(patterns)
		scores[account] = AccountScore{
			Score:    math.Max(0, math.Min(score, p.MaxScore)),
			Patterns: patterns,
		}
	}
	return scores
}

// poolByAccount lists, per account, each transaction it sent or received.
// A self-transfer is pooled once.
func poolByAccount(txs []domain.Transaction) map[string][]domain.Transaction {
	pooled := make(map[string][]domain.Transaction)
	for _, tx := range txs {
		pooled[tx.SenderID] = append(pooled[tx.SenderID], tx)
		if tx.ReceiverID != tx.SenderID {
			pooled[tx.ReceiverID] = append(pooled[tx.ReceiverID], tx)
		}
	}
	return pooled
}

func isHighVelocity(txs []domain.Transaction, p ScoringParams) bool {
	if len(txs) < p.VelocityMinTransactions || len(txs) == 0 {
		return false
	}
	earliest, latest := txs[0].Timestamp, txs[0].Timestamp
	for _, tx := range txs[1:] {
		if tx.Timestamp.Before(earliest) {
			earliest = tx.Timestamp
		}
		if tx.Timestamp.After(latest) {
			latest = tx.Timestamp
		}
	}
	spanDays := math.Max(latest.Sub(earliest).Hours()/24, 1)
	return float64(len(txs))/spanDays >= p.VelocityPerDay
}

// isPayrollLike reports a regular monthly rhythm: enough transactions over
// enough calendar months with a low coefficient of variation of the monthly
// counts.
func isPayrollLike(txs []domain.Transaction, p ScoringParams) bool {
	if len(txs) < p.PayrollMinTransactions {
		return false
	}
	monthly := make(map[string]int)
	for _, tx := range txs {
		monthly[tx.Timestamp.Format("2006-01")]++
	}
	if len(monthly) < p.PayrollMinMonths || len(monthly) == 0 {
		return false
	}

	mean := float64(len(txs)) / float64(len(monthly))
	variance := 0.0
	for _, count := range monthly {
		d := float64(count) - mean
		variance += d * d
	}
	variance /= float64(len(monthly))
	return math.Sqrt(variance)/mean < p.PayrollMaxCV
}
