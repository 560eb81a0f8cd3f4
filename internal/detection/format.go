package detection

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/ringtrace/internal/domain"
)

// FormatResult assembles the deterministic output of a run. Accounts with a
// positive score are listed by score descending then id; rings by risk score
// descending then ring id.
func FormatResult(g *Graph, rings Rings, scores Scores, elapsed time.Duration) domain.DetectionResult {
	accounts := make([]domain.SuspiciousAccount, 0)
	for _, id := range g.Accounts() {
		score, ok := scores[id]
		if !ok || score.Score <= 0 {
			continue
		}
		var ring *string
		if ringID, mapped := rings.AccountRing[id]; mapped {
			ring = &ringID
		}
		accounts = append(accounts, domain.SuspiciousAccount{
			AccountID:        id,
			SuspicionScore:   round(score.Score, 1),
			DetectedPatterns: append([]string{}, score.Patterns...),
			RingID:           ring,
		})
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].SuspicionScore != accounts[j].SuspicionScore {
			return accounts[i].SuspicionScore > accounts[j].SuspicionScore
		}
		return accounts[i].AccountID < accounts[j].AccountID
	})

	fraudRings := make([]domain.FraudRing, 0, len(rings.Cycles)+len(rings.Shells))
	for _, ring := range rings.All() {
		members := ring.Members()
		risk := 0.0
		if len(members) > 0 {
			for _, m := range members {
				risk += scores.Score(m)
			}
			risk /= float64(len(members))
		}
		fraudRings = append(fraudRings, domain.FraudRing{
			RingID:         ring.ID,
			MemberAccounts: members,
			PatternType:    patternType(ring.Pattern),
			RiskScore:      round(risk, 1),
		})
	}
	sort.SliceStable(fraudRings, func(i, j int) bool {
		if fraudRings[i].RiskScore != fraudRings[j].RiskScore {
			return fraudRings[i].RiskScore > fraudRings[j].RiskScore
		}
		return fraudRings[i].RingID < fraudRings[j].RingID
	})

	return domain.DetectionResult{
		SuspiciousAccounts: accounts,
		FraudRings:         fraudRings,
		Summary: domain.Summary{
			TotalAccountsAnalyzed:     g.Len(),
			SuspiciousAccountsFlagged: len(accounts),
			FraudRingsDetected:        len(fraudRings),
			ProcessingTimeSeconds:     round(elapsed.Seconds(), 2),
		},
	}
}

func patternType(pattern string) string {
	switch pattern {
	case domain.PatternCycle, domain.PatternShell:
		return pattern
	default:
		return domain.PatternUnknown
	}
}

// round rounds half to even. Ring risks are multiples of 5 over a member
// count, so every tie is exact in binary and rounds down to the even digit.
func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).RoundBank(places).InexactFloat64()
}
