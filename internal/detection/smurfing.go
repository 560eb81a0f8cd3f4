package detection

import (
	"fmt"
	"sort"
	"time"

	"github.com/vanshika/ringtrace/internal/domain"
)

// Smurfing directions.
const (
	FanIn  = "fan_in"
	FanOut = "fan_out"
)

// SmurfingFlag records the earliest window in which an account reached the
// counterparty threshold.
type SmurfingFlag struct {
	AccountID   string
	Pattern     string
	Label       string
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
}

// SmurfingLabel is the self-describing label for a direction and its settings.
func SmurfingLabel(pattern string, threshold, windowHours int) string {
	return fmt.Sprintf("%s_%d_%dh", pattern, threshold, windowHours)
}

type smurfingDirection struct {
	pattern      string
	account      func(domain.Transaction) string
	counterparty func(domain.Transaction) string
}

// smurfingDirections lists the passes in precedence order. An account flagged
// by an earlier pass is not considered by later ones.
var smurfingDirections = []smurfingDirection{
	{
		pattern:      FanIn,
		account:      func(tx domain.Transaction) string { return tx.ReceiverID },
		counterparty: func(tx domain.Transaction) string { return tx.SenderID },
	},
	{
		pattern:      FanOut,
		account:      func(tx domain.Transaction) string { return tx.SenderID },
		counterparty: func(tx domain.Transaction) string { return tx.ReceiverID },
	},
}

// DetectSmurfing flags accounts receiving from (fan-in) or sending to (fan-out)
// at least threshold distinct counterparties within windowHours of some
// transaction. Every transaction is tried as a window anchor in time order, so
// the worst case is quadratic in an account's transaction count.
func DetectSmurfing(g *Graph, txs []domain.Transaction, threshold, windowHours int) map[string]SmurfingFlag {
	flags := make(map[string]SmurfingFlag)
	window := time.Duration(windowHours) * time.Hour

	for _, dir := range smurfingDirections {
		byAccount := make(map[string][]domain.Transaction)
		for _, tx := range txs {
			id := dir.account(tx)
			byAccount[id] = append(byAccount[id], tx)
		}

		label := SmurfingLabel(dir.pattern, threshold, windowHours)
		for _, account := range g.Accounts() {
			if _, flagged := flags[account]; flagged {
				continue
			}
			list := byAccount[account]
			if len(list) < threshold {
				continue
			}
			sort.SliceStable(list, func(i, j int) bool {
				return list[i].Timestamp.Before(list[j].Timestamp)
			})
			if flag, ok := earliestWindow(list, dir, threshold, window); ok {
				flag.AccountID = account
				flag.Label = label
				flags[account] = flag
			}
		}
	}
	return flags
}

func earliestWindow(sorted []domain.Transaction, dir smurfingDirection, threshold int, window time.Duration) (SmurfingFlag, bool) {
	for i, anchor := range sorted {
		start := anchor.Timestamp
		end := start.Add(window)

		counterparties := make(map[string]struct{})
		for _, tx := range sorted[i:] {
			if tx.Timestamp.After(end) {
				break
			}
			counterparties[dir.counterparty(tx)] = struct{}{}
		}
		if len(counterparties) >= threshold {
			return SmurfingFlag{
				Pattern:     dir.pattern,
				Count:       len(counterparties),
				WindowStart: start,
				WindowEnd:   end,
			}, true
		}
	}
	return SmurfingFlag{}, false
}
