package detection

import (
	"fmt"
	"time"

	"github.com/vanshika/ringtrace/internal/domain"
)

var baseTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

type txBuilder struct {
	seq int
	txs []domain.Transaction
}

func (b *txBuilder) add(from, to string, amount float64, at time.Time) *txBuilder {
	b.seq++
	b.txs = append(b.txs, domain.Transaction{
		ID:         fmt.Sprintf("TX_%04d", b.seq),
		SenderID:   from,
		ReceiverID: to,
		Amount:     amount,
		Timestamp:  at,
	})
	return b
}

// chain adds one transaction per hop, an hour apart.
func (b *txBuilder) chain(accounts ...string) *txBuilder {
	for i := 0; i+1 < len(accounts); i++ {
		b.add(accounts[i], accounts[i+1], 1000, baseTime.Add(time.Duration(len(b.txs))*time.Hour))
	}
	return b
}

func memberSets(rings []Ring) [][]string {
	out := make([][]string, 0, len(rings))
	for _, r := range rings {
		out = append(out, r.Members())
	}
	return out
}
